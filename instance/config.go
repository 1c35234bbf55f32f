package instance

import (
	"fmt"
	"io/ioutil"

	yaml "gopkg.in/yaml.v2"

	"github.com/convoycd/convoy"
	"github.com/convoycd/convoy/runtime"
)

// Config files look like:
//
//	instances:
//	  - name: blue
//	    host: prod-1
//	    binding: {hostPort: 8081, containerPort: 80}

type configFile struct {
	Instances []configInstance `yaml:"instances"`
}

type configInstance struct {
	Name    string              `yaml:"name"`
	Host    string              `yaml:"host"`
	Binding runtime.PortMapping `yaml:"binding"`
}

func ParseConfig(data []byte) ([]Instance, error) {
	var file configFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, &convoy.ConfigError{Err: err}
	}
	seen := map[string]bool{}
	bindings := map[string]bool{}
	out := make([]Instance, 0, len(file.Instances))
	for _, ci := range file.Instances {
		if ci.Name == "" {
			return nil, convoy.Errorf("instance with no name")
		}
		if seen[ci.Name] {
			return nil, convoy.Errorf("duplicate instance name %q", ci.Name)
		}
		seen[ci.Name] = true
		if ci.Host == "" {
			return nil, convoy.Errorf("instance %q has no host", ci.Name)
		}
		if ci.Binding.HostPort == 0 || ci.Binding.ContainerPort == 0 {
			return nil, convoy.Errorf("instance %q has an incomplete binding", ci.Name)
		}
		bind := fmt.Sprintf("%s:%d", ci.Host, ci.Binding.HostPort)
		if bindings[bind] {
			return nil, convoy.Errorf("instance %q reuses host binding %s", ci.Name, bind)
		}
		bindings[bind] = true
		out = append(out, Instance{Name: ci.Name, Host: ci.Host, Binding: ci.Binding})
	}
	if len(out) == 0 {
		return nil, convoy.Errorf("no instances declared")
	}
	return out, nil
}

func ParseConfigFile(path string) ([]Instance, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, &convoy.ConfigError{Err: err}
	}
	return ParseConfig(data)
}
