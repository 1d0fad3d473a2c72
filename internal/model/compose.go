package model

import (
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultComposeFile is looked up in the current directory.
	DefaultComposeFile = "app-compose.yml"
	// WorkDirName is created next to the compose file.
	WorkDirName = ".app-compose"
	// PidDirName lives inside WorkDirName.
	PidDirName = "pids"
)

// Compose is a parsed compose file. Services keep their declaration order.
type Compose struct {
	Services []Service
}

// Service describes one supervised command. It is never mutated after load.
type Service struct {
	Name        string
	Command     string
	Cwd         string   // empty means project root
	Environment []EnvVar // declaration order
}

type EnvVar struct {
	Name  string
	Value string
}

// envRef matches a value which is nothing but a reference to a variable,
// $NAME or ${NAME}.
var envRef = regexp.MustCompile(`^\$(?:([A-Za-z_][A-Za-z0-9_]*)|\{([A-Za-z_][A-Za-z0-9_]*)\})$`)

// Env returns the exact environment of the child process. A value consisting
// of a single $NAME or ${NAME} reference is taken from the environment of
// app-compose itself when that variable is set. Any other value, including
// an unset reference, is passed as written. Nothing else is inherited.
func (s Service) Env() []string {
	env := make([]string, 0, len(s.Environment))
	for _, e := range s.Environment {
		env = append(env, e.Name+"="+expand(e.Value))
	}
	return env
}

func expand(v string) string {
	m := envRef.FindStringSubmatch(v)
	if m == nil {
		return v
	}
	if x, ok := os.LookupEnv(m[1] + m[2]); ok {
		return x
	}
	return v
}

// Dir resolves the working directory against the project root.
func (s Service) Dir(root string) string {
	switch {
	case s.Cwd == "":
		return root
	case strings.HasPrefix(s.Cwd, "~"):
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, s.Cwd[1:])
		}
		return s.Cwd
	case filepath.IsAbs(s.Cwd):
		return s.Cwd
	default:
		return filepath.Join(root, s.Cwd)
	}
}

// Index returns the declaration index of the named service or -1.
func (c Compose) Index(name string) int {
	for i, s := range c.Services {
		if s.Name == name {
			return i
		}
	}
	return -1
}

// Names returns service names in declaration order.
func (c Compose) Names() []string {
	ret := make([]string, len(c.Services))
	for i, s := range c.Services {
		ret[i] = s.Name
	}
	return ret
}

// LoadComposeFile reads path and returns the compose definition together with
// the project root, which is the directory holding the file.
func LoadComposeFile(path string) (Compose, string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Compose{}, "", fmt.Errorf("resolving %s: %w", path, err)
	}
	f, err := os.Open(abs)
	if err != nil {
		return Compose{}, "", fmt.Errorf("opening compose file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	compose, err := LoadCompose(f)
	if err != nil {
		return Compose{}, "", fmt.Errorf("parsing %s: %w", abs, err)
	}
	return compose, filepath.Dir(abs), nil
}

// LoadCompose parses a compose document:
//
//	services:
//	  web:
//	    command: python -m http.server
//	    cwd: ./site
//	    environment:
//	      PATH: $PATH
//
// It works on yaml.Node level, because Go maps lose the declaration order.
func LoadCompose(r io.Reader) (Compose, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Compose{}, &ConfigError{Message: "empty document"}
		}
		return Compose{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	root := &doc
	if root.Kind == yaml.DocumentNode && len(root.Content) == 1 {
		root = root.Content[0]
	}
	if root.Kind != yaml.MappingNode {
		return Compose{}, &ConfigError{Line: root.Line, Message: "top level must be a mapping"}
	}

	var services *yaml.Node
	for k, v := range pairs(root) {
		switch k.Value {
		case "services":
			services = v
		case "version":
			// accepted for docker-compose look-alike files
		default:
			return Compose{}, &ConfigError{Line: k.Line, Path: k.Value, Message: "unknown field"}
		}
	}
	if services == nil {
		return Compose{}, &ConfigError{Line: root.Line, Path: "services", Message: "missing required field"}
	}
	if isNull(services) {
		return Compose{}, nil
	}
	if services.Kind != yaml.MappingNode {
		return Compose{}, &ConfigError{Line: services.Line, Path: "services", Message: "must be a mapping of name to service"}
	}

	var compose Compose
	seen := make(map[string]int)
	for k, v := range pairs(services) {
		name := k.Value
		if err := validName(name); err != nil {
			return Compose{}, &ConfigError{Line: k.Line, Path: "services." + name, Message: err.Error()}
		}
		if line, ok := seen[name]; ok {
			return Compose{}, &ConfigError{Line: k.Line, Path: "services." + name, Message: fmt.Sprintf("duplicate service, first defined on line %d", line)}
		}
		seen[name] = k.Line

		svc, err := parseService(name, v)
		if err != nil {
			return Compose{}, err
		}
		compose.Services = append(compose.Services, svc)
	}
	return compose, nil
}

func parseService(name string, node *yaml.Node) (Service, error) {
	path := "services." + name
	if node.Kind != yaml.MappingNode {
		return Service{}, &ConfigError{Line: node.Line, Path: path, Message: "must be a mapping"}
	}

	svc := Service{Name: name}
	var hasCommand bool
	for k, v := range pairs(node) {
		fieldPath := path + "." + k.Value
		switch k.Value {
		case "command":
			s, err := scalar(v, fieldPath)
			if err != nil {
				return Service{}, err
			}
			svc.Command = strings.TrimSpace(s)
			hasCommand = true
		case "cwd":
			s, err := scalar(v, fieldPath)
			if err != nil {
				return Service{}, err
			}
			svc.Cwd = s
		case "environment":
			env, err := environment(v, fieldPath)
			if err != nil {
				return Service{}, err
			}
			svc.Environment = env
		default:
			return Service{}, &ConfigError{Line: k.Line, Path: fieldPath, Message: "unknown field"}
		}
	}

	if !hasCommand {
		return Service{}, &ConfigError{Line: node.Line, Path: path + ".command", Message: "missing required field"}
	}
	if svc.Command == "" {
		return Service{}, &ConfigError{Line: node.Line, Path: path + ".command", Message: "must not be empty"}
	}
	return svc, nil
}

func environment(node *yaml.Node, path string) ([]EnvVar, error) {
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, &ConfigError{Line: node.Line, Path: path, Message: "must be a mapping of string to string"}
	}
	var env []EnvVar
	for k, v := range pairs(node) {
		if k.Value == "" || strings.ContainsAny(k.Value, "=\x00") {
			return nil, &ConfigError{Line: k.Line, Path: path + "." + k.Value, Message: "invalid variable name"}
		}
		s, err := scalar(v, path+"."+k.Value)
		if err != nil {
			return nil, err
		}
		env = append(env, EnvVar{Name: k.Value, Value: s})
	}
	return env, nil
}

func scalar(node *yaml.Node, path string) (string, error) {
	if isNull(node) {
		return "", nil
	}
	if node.Kind != yaml.ScalarNode {
		return "", &ConfigError{Line: node.Line, Path: path, Message: "must be a string"}
	}
	return node.Value, nil
}

func isNull(node *yaml.Node) bool {
	return node.Kind == yaml.ScalarNode && node.ShortTag() == "!!null"
}

// validName rejects names, which can't be used as a pid file name.
func validName(name string) error {
	switch {
	case name == "":
		return errors.New("service name must not be empty")
	case name == "." || name == "..":
		return errors.New("service name must not be . or ..")
	case strings.ContainsAny(name, `/\`+"\x00"):
		return errors.New("service name must not contain path separators")
	}
	return nil
}

// pairs iterates over key and value nodes of a mapping node.
func pairs(node *yaml.Node) iter.Seq2[*yaml.Node, *yaml.Node] {
	return func(yield func(k, v *yaml.Node) bool) {
		for i := 0; i+1 < len(node.Content); i += 2 {
			if !yield(node.Content[i], node.Content[i+1]) {
				return
			}
		}
	}
}
