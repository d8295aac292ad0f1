package gdocai

import (
	"errors"
	"fmt"
)

// Config identifies the Document AI processor to call
type Config struct {
	ProjectID       string `yaml:"project_id"`
	Location        string `yaml:"location"`
	ProcessorID     string `yaml:"processor_id"`
	CredentialsFile string `yaml:"credentials_file"`
}

// Validate checks that the processor is fully identified
func (c *Config) Validate() error {
	var errs []error
	if c.ProjectID == "" {
		errs = append(errs, errors.New("documentai: project_id is required"))
	}
	if c.Location == "" {
		errs = append(errs, errors.New("documentai: location is required"))
	}
	if c.ProcessorID == "" {
		errs = append(errs, errors.New("documentai: processor_id is required"))
	}
	return errors.Join(errs...)
}

// ProcessorName is the resource name of the processor
func (c *Config) ProcessorName() string {
	return fmt.Sprintf(
		"projects/%s/locations/%s/processors/%s",
		c.ProjectID, c.Location, c.ProcessorID,
	)
}
