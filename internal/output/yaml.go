package output

import (
	"gopkg.in/yaml.v3"
)

// YAMLFormatter renders results as YAML.
type YAMLFormatter struct{}

// FormatSolved renders a result as YAML.
func (f *YAMLFormatter) FormatSolved(result *SolvedResult) (string, error) {
	if result == nil {
		return "", nil
	}

	data, err := yaml.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
