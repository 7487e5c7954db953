// Package catalog holds the fixed lookup tables the scanner UI works from:
// scannable services, AWS regions and compliance frameworks.
package catalog

import "sort"

// Service is one scannable AWS service.
type Service struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`
}

// Region is one AWS region.
type Region struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Framework is one compliance framework the scanner can evaluate.
type Framework struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

var services = []Service{
	{ID: "apigateway", Name: "API Gateway", Category: "Networking"},
	{ID: "cloudfront", Name: "CloudFront", Category: "Networking"},
	{ID: "cloudtrail", Name: "CloudTrail", Category: "Security"},
	{ID: "cloudwatch", Name: "CloudWatch", Category: "Management"},
	{ID: "dynamodb", Name: "DynamoDB", Category: "Database"},
	{ID: "ec2", Name: "EC2 (Compute)", Category: "Compute"},
	{ID: "efs", Name: "EFS", Category: "Storage"},
	{ID: "eks", Name: "EKS", Category: "Containers"},
	{ID: "elasticache", Name: "ElastiCache", Category: "Database"},
	{ID: "guardduty", Name: "GuardDuty", Category: "Security"},
	{ID: "iam", Name: "IAM", Category: "Security"},
	{ID: "kms", Name: "KMS", Category: "Security"},
	{ID: "lambda", Name: "Lambda", Category: "Compute"},
	{ID: "opensearch", Name: "OpenSearch", Category: "Analytics"},
	{ID: "rds", Name: "RDS", Category: "Database"},
	{ID: "redshift", Name: "Redshift", Category: "Analytics"},
	{ID: "s3", Name: "S3", Category: "Storage"},
	{ID: "sqs", Name: "SQS", Category: "Application Integration"},
}

var regions = []Region{
	{ID: "us-east-1", Name: "US East (N. Virginia)"},
	{ID: "us-east-2", Name: "US East (Ohio)"},
	{ID: "us-west-1", Name: "US West (N. California)"},
	{ID: "us-west-2", Name: "US West (Oregon)"},
	{ID: "ap-southeast-1", Name: "Asia Pacific (Singapore)"},
	{ID: "ap-southeast-2", Name: "Asia Pacific (Sydney)"},
	{ID: "ap-northeast-1", Name: "Asia Pacific (Tokyo)"},
	{ID: "ap-northeast-2", Name: "Asia Pacific (Seoul)"},
	{ID: "ap-northeast-3", Name: "Asia Pacific (Osaka)"},
	{ID: "ap-south-1", Name: "Asia Pacific (Mumbai)"},
	{ID: "eu-west-1", Name: "Europe (Ireland)"},
	{ID: "eu-west-2", Name: "Europe (London)"},
	{ID: "eu-west-3", Name: "Europe (Paris)"},
	{ID: "eu-central-1", Name: "Europe (Frankfurt)"},
	{ID: "eu-north-1", Name: "Europe (Stockholm)"},
	{ID: "sa-east-1", Name: "South America (São Paulo)"},
	{ID: "ca-central-1", Name: "Canada (Central)"},
}

var frameworks = []Framework{
	{ID: "WAFS", Name: "AWS Well-Architected Framework - Security Pillar"},
	{ID: "CIS", Name: "CIS AWS Foundations Benchmark"},
	{ID: "FTR", Name: "AWS Foundational Technical Review"},
	{ID: "NIST", Name: "NIST Cybersecurity Framework"},
	{ID: "SOC2", Name: "SOC 2 Compliance"},
	{ID: "SSB", Name: "AWS Startup Security Baseline"},
}

// Services returns the scannable service table.
func Services() []Service { return services }

// Regions returns the AWS region table.
func Regions() []Region { return regions }

// Frameworks returns the compliance framework table.
func Frameworks() []Framework { return frameworks }

// RegionIDs returns all known region identifiers, longest first, so that
// substring matching against URLs prefers the most specific region.
func RegionIDs() []string {
	ids := make([]string, len(regions))
	for i, r := range regions {
		ids[i] = r.ID
	}
	sort.Slice(ids, func(i, j int) bool {
		if len(ids[i]) != len(ids[j]) {
			return len(ids[i]) > len(ids[j])
		}
		return ids[i] < ids[j]
	})
	return ids
}

// KnownService reports whether id is in the service table.
func KnownService(id string) bool {
	for _, s := range services {
		if s.ID == id {
			return true
		}
	}
	return false
}

// KnownRegion reports whether id is in the region table.
func KnownRegion(id string) bool {
	for _, r := range regions {
		if r.ID == id {
			return true
		}
	}
	return false
}
