package catalog

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/go-ini/ini"
)

// DefaultCredentialsPath is where the AWS CLI keeps named profiles.
func DefaultCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".aws", "credentials")
}

// Profiles lists the named profiles found in an AWS credentials file.
// "default" is always included; a missing or unreadable file is not an
// error, the caller just gets the default entry.
func Profiles(path string) []string {
	set := map[string]bool{"default": true}

	if path != "" {
		if f, err := ini.Load(path); err == nil {
			for _, section := range f.SectionStrings() {
				if section == ini.DefaultSection {
					continue
				}
				set[section] = true
			}
		}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
