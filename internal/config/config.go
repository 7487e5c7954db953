package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Scanner struct {
		// Command is the scanner executable plus fixed leading arguments.
		Command []string `yaml:"command"`
		WorkDir string   `yaml:"workDir"`
		// OutputRoot is where the scanner writes per-account report dirs.
		OutputRoot string `yaml:"outputRoot"`
		// ProgressMarkers are the output substrings counted as service
		// starts; empty means the built-in defaults.
		ProgressMarkers []string `yaml:"progressMarkers"`
		TailLines       int      `yaml:"tailLines"`
	} `yaml:"scanner"`

	SSO struct {
		// ClientName shows up in the SSO console during device approval.
		ClientName string `yaml:"clientName"`
	} `yaml:"sso"`

	Profiles struct {
		// CredentialsPath overrides ~/.aws/credentials for profile lookup.
		CredentialsPath string `yaml:"credentialsPath"`
	} `yaml:"profiles"`

	Minio struct {
		Endpoint   string `yaml:"endpoint"`
		AccessKey  string `yaml:"accessKey"`
		SecretKey  string `yaml:"secretKey"`
		BucketName string `yaml:"bucketName"`
		Region     string `yaml:"region"`
		UseSSL     bool   `yaml:"useSSL"`
	} `yaml:"minio"`

	OpenAI struct {
		APIKey string `yaml:"apiKey"`
		Model  string `yaml:"model"`
	} `yaml:"openai"`
}

// Load reads the yaml config file and fills in defaults. A missing file is
// not an error; the defaults alone make a runnable server.
func Load(path string) (*Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if len(c.Scanner.Command) == 0 {
		c.Scanner.Command = []string{"python3", "main.py"}
	}
	if c.Scanner.OutputRoot == "" {
		c.Scanner.OutputRoot = "adminlte/aws"
	}
	if c.SSO.ClientName == "" {
		c.SSO.ClientName = "CloudScreenerWebGUI"
	}
}

// ArtifactsEnabled reports whether a MinIO store is configured.
func (c *Config) ArtifactsEnabled() bool { return c.Minio.Endpoint != "" }

// AdvisorEnabled reports whether the OpenAI advisor is configured.
func (c *Config) AdvisorEnabled() bool { return c.OpenAI.APIKey != "" }
