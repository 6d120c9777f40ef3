package config

import (
	"fmt"
	"os"

	"github.com/Velocidex/yaml/v2"
	"github.com/go-errors/errors"
)

type loaderFunction struct {
	name        string
	loader_func func(self *Loader) (*Config, error)
}

type validatorFunction struct {
	name      string
	validator func(self *Loader, config_obj *Config) error
}

// Loader assembles a validated Config from a chain of possible
// sources. Each With* call copies the loader so partially built
// loaders may be shared.
type Loader struct {
	verbose bool

	loaders    []loaderFunction
	validators []validatorFunction
}

func (self *Loader) Copy() *Loader {
	return &Loader{
		verbose:    self.verbose,
		loaders:    append([]loaderFunction{}, self.loaders...),
		validators: append([]validatorFunction{}, self.validators...),
	}
}

func (self *Loader) WithVerbose(verbose bool) *Loader {
	self = self.Copy()
	self.verbose = verbose
	return self
}

func (self *Loader) WithFileLoader(filename string) *Loader {
	if filename == "" {
		return self
	}

	self = self.Copy()
	self.loaders = append(self.loaders, loaderFunction{
		name: "FileLoader",
		loader_func: func(self *Loader) (*Config, error) {
			self.Log("Loading config from file %v", filename)
			result, err := read_config_from_file(filename)
			if err != nil {
				// If a filename is specified but it
				// does not exist or is invalid, it is
				// a hard error.
				return nil, HardError{err}
			}
			return result, nil
		}})
	return self
}

// WithLiteralLoader loads the config from the given yaml blob. Used
// mainly by tests.
func (self *Loader) WithLiteralLoader(serialized []byte) *Loader {
	self = self.Copy()
	self.loaders = append(self.loaders, loaderFunction{
		name: "LiteralLoader",
		loader_func: func(self *Loader) (*Config, error) {
			result := GetDefaultConfig()
			err := yaml.UnmarshalStrict(serialized, result)
			if err != nil {
				return nil, HardError{err}
			}
			return result, nil
		}})
	return self
}

func (self *Loader) WithDefaultLoader() *Loader {
	self = self.Copy()
	self.loaders = append(self.loaders, loaderFunction{
		name: "DefaultLoader",
		loader_func: func(self *Loader) (*Config, error) {
			return GetDefaultConfig(), nil
		}})
	return self
}

// WithRequiredFrontend refuses configs without a Frontend section.
func (self *Loader) WithRequiredFrontend() *Loader {
	self = self.Copy()
	self.validators = append(self.validators, validatorFunction{
		name: "RequiredFrontend",
		validator: func(self *Loader, config_obj *Config) error {
			if config_obj.Frontend == nil {
				return errors.New("Config does not contain a Frontend section")
			}
			return nil
		}})
	return self
}

// WithRequiredCluster refuses configs that can not reach the shared
// cluster facilities (Redis) unless local mode is selected.
func (self *Loader) WithRequiredCluster() *Loader {
	self = self.Copy()
	self.validators = append(self.validators, validatorFunction{
		name: "RequiredCluster",
		validator: func(self *Loader, config_obj *Config) error {
			if config_obj.Services != nil &&
				config_obj.Services.LocalMode {
				return nil
			}
			if config_obj.Redis == nil || config_obj.Redis.Address == "" {
				return errors.New(
					"Distributed deployment requires a Redis section")
			}
			return nil
		}})
	return self
}

func (self *Loader) Log(format string, v ...interface{}) {
	if self.verbose {
		fmt.Fprintf(os.Stderr, format+"\n", v...)
	}
}

func (self *Loader) Validate(config_obj *Config) error {
	if config_obj.Services == nil {
		config_obj.Services = GetDefaultConfig().Services
	}

	for _, validator := range self.validators {
		err := validator.validator(self, config_obj)
		if err != nil {
			self.Log("Validation %v failed: %v", validator.name, err)
			return err
		}
	}
	return nil
}

// LoadAndValidate tries each configured loader in order and returns
// the first config that passes validation.
func (self *Loader) LoadAndValidate() (*Config, error) {
	for _, loader := range self.loaders {
		result, err := loader.loader_func(self)
		if err == nil {
			return result, self.Validate(result)
		}

		// Stop on hard errors.
		hard_error, ok := err.(HardError)
		if ok {
			return nil, hard_error.Err
		}
		self.Log("Loader %v failed: %v", loader.name, err)
	}
	return nil, errors.New("Unable to load config from any source")
}

// A hard error causes the loader to stop immediately.
type HardError struct {
	Err error
}

func (self HardError) Error() string {
	return self.Err.Error()
}

func read_config_from_file(filename string) (*Config, error) {
	result := GetDefaultConfig()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.New(err)
	}

	err = yaml.UnmarshalStrict(data, result)
	if err != nil {
		return nil, errors.New(err)
	}
	return result, nil
}
