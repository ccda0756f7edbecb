// Package travisfile parses Travis-style build files.
package travisfile

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/snowman2/cimatrix/internal/domain"
)

// Ensure Loader implements domain.BuildFileLoader interface.
var _ domain.BuildFileLoader = (*Loader)(nil)

// Loader reads build files from disk.
type Loader struct{}

// NewLoader creates a new Loader.
func NewLoader() *Loader {
	return &Loader{}
}

// Load reads and parses the build file at path.
func (l *Loader) Load(path string) (*domain.BuildFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrBuildFileNotFound, path)
		}
		return nil, fmt.Errorf("read build file: %w", err)
	}
	return l.Parse(data, path)
}

// Parse parses build file content.
func (l *Loader) Parse(data []byte, path string) (*domain.BuildFile, error) {
	return ParseBuildFile(data, path)
}

// knownKeys lists the top-level keys the runner understands.
// Keys outside this list are reported as warnings.
var knownKeys = []string{
	"language", "dist", "os", "env", "matrix", "jobs", "cache", "notifications",
	"before_install", "install", "before_script", "script",
	"after_success", "after_failure", "after_script",
	"sudo", "group", "python", "compiler",
}

// rawFile mirrors the YAML layout of a build file.
type rawFile struct {
	Matrix        *rawMatrix       `yaml:"matrix"`
	Jobs          *rawMatrix       `yaml:"jobs"`
	BeforeInstall *stringList      `yaml:"before_install"`
	Install       *stringList      `yaml:"install"`
	BeforeScript  *stringList      `yaml:"before_script"`
	Script        *stringList      `yaml:"script"`
	AfterSuccess  *stringList      `yaml:"after_success"`
	AfterFailure  *stringList      `yaml:"after_failure"`
	AfterScript   *stringList      `yaml:"after_script"`
	Language      string           `yaml:"language"`
	Dist          string           `yaml:"dist"`
	OS            stringList       `yaml:"os"`
	Env           rawEnv           `yaml:"env"`
	Cache         rawCache         `yaml:"cache"`
	Notifications rawNotifications `yaml:"notifications"`
}

// ParseBuildFile parses build file content. path is only used in messages
// and recorded on the result.
func ParseBuildFile(data []byte, path string) (*domain.BuildFile, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidBuildFile, path, err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("%w: %s: file is empty", domain.ErrInvalidBuildFile, path)
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: %s: top level must be a mapping", domain.ErrInvalidBuildFile, path)
	}

	var warnings []string
	for i := 0; i+1 < len(root.Content); i += 2 {
		key := root.Content[i].Value
		if !slices.Contains(knownKeys, key) {
			warnings = append(warnings, fmt.Sprintf("line %d: unknown key %q is ignored", root.Content[i].Line, key))
		}
	}

	var raw rawFile
	if err := root.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrInvalidBuildFile, path, err)
	}

	bf := &domain.BuildFile{
		Path:     path,
		Language: raw.Language,
		Dist:     raw.Dist,
		OS:       raw.OS,
		Phases:   make(map[domain.Phase][]string),
	}

	phases := []struct {
		list  *stringList
		phase domain.Phase
	}{
		{raw.BeforeInstall, domain.PhaseBeforeInstall},
		{raw.Install, domain.PhaseInstall},
		{raw.BeforeScript, domain.PhaseBeforeScript},
		{raw.Script, domain.PhaseScript},
		{raw.AfterSuccess, domain.PhaseAfterSuccess},
		{raw.AfterFailure, domain.PhaseAfterFailure},
		{raw.AfterScript, domain.PhaseAfterScript},
	}
	for _, p := range phases {
		if p.list != nil {
			bf.Phases[p.phase] = []string(*p.list)
		}
	}

	var errs []error
	parseEntries := func(raws []string) []domain.EnvEntry {
		entries := make([]domain.EnvEntry, 0, len(raws))
		for _, r := range raws {
			e, err := ParseEnvEntry(r)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %w", domain.ErrInvalidBuildFile, err))
				continue
			}
			entries = append(entries, e)
		}
		return entries
	}
	bf.Env.Global = parseEntries(raw.Env.Global)
	bf.Env.Matrix = parseEntries(raw.Env.Matrix)
	warnings = append(warnings, raw.Env.warnings...)

	matrix := raw.Matrix
	if matrix == nil {
		matrix = raw.Jobs
	} else if raw.Jobs != nil {
		warnings = append(warnings, "both matrix and jobs are set; jobs is ignored")
	}
	if matrix != nil {
		bf.Matrix.FastFinish = matrix.FastFinish
		convert := func(rules []rawRule) []domain.MatrixRule {
			out := make([]domain.MatrixRule, 0, len(rules))
			for _, r := range rules {
				rule := domain.MatrixRule{OS: r.OS, Name: r.Name}
				if env := strings.TrimSpace(strings.Join(r.Env, " ")); env != "" {
					e, err := ParseEnvEntry(env)
					if err != nil {
						errs = append(errs, fmt.Errorf("%w: %w", domain.ErrInvalidBuildFile, err))
						continue
					}
					rule.Env = e
				}
				out = append(out, rule)
			}
			return out
		}
		bf.Matrix.AllowFailures = convert(matrix.AllowFailures)
		bf.Matrix.Exclude = convert(matrix.Exclude)
		bf.Matrix.Include = convert(matrix.Include)
	}

	bf.Cache = domain.CacheSpec{Directories: raw.Cache.Directories, Disabled: raw.Cache.disabled}
	warnings = append(warnings, raw.Cache.warnings...)

	bf.Notifications = raw.Notifications.toDomain()

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	bf.ApplyDefaults()
	bf.Warnings = warnings
	return bf, nil
}

// stringList accepts a scalar or a sequence of scalars.
type stringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *stringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*s = nil
			return nil
		}
		*s = stringList{node.Value}
		return nil
	case yaml.SequenceNode:
		out := make(stringList, 0, len(node.Content))
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: expected a string, got a %s", item.Line, kindName(item.Kind))
			}
			out = append(out, item.Value)
		}
		*s = out
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list, got a %s", node.Line, kindName(node.Kind))
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "list"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "node"
	}
}

// rawEnv accepts a list (matrix entries) or a mapping with global and
// matrix (or jobs) lists.
type rawEnv struct {
	Global   []string
	Matrix   []string
	warnings []string
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *rawEnv) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode, yaml.SequenceNode:
		list, skipped, err := envList(node)
		if err != nil {
			return err
		}
		e.Matrix = list
		e.warnings = append(e.warnings, skipped...)
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i].Value, node.Content[i+1]
			list, skipped, err := envList(value)
			if err != nil {
				return err
			}
			e.warnings = append(e.warnings, skipped...)
			switch key {
			case "global":
				e.Global = list
			case "matrix", "jobs":
				e.Matrix = list
			default:
				e.warnings = append(e.warnings, fmt.Sprintf("line %d: unknown env key %q is ignored", node.Content[i].Line, key))
			}
		}
		return nil
	default:
		return fmt.Errorf("line %d: env must be a list or a mapping", node.Line)
	}
}

// envList reads env entries, skipping encrypted entries ({secure: ...}).
func envList(node *yaml.Node) ([]string, []string, error) {
	if node.Kind == yaml.ScalarNode {
		if node.Tag == "!!null" {
			return nil, nil, nil
		}
		return []string{node.Value}, nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, nil, fmt.Errorf("line %d: env entries must be a list", node.Line)
	}
	var list, skipped []string
	for _, item := range node.Content {
		switch item.Kind {
		case yaml.ScalarNode:
			list = append(list, item.Value)
		case yaml.MappingNode:
			skipped = append(skipped, fmt.Sprintf("line %d: encrypted env entries are not supported and are skipped", item.Line))
		default:
			return nil, nil, fmt.Errorf("line %d: env entry must be a string", item.Line)
		}
	}
	return list, skipped, nil
}

// rawMatrix mirrors the matrix (or jobs) section.
type rawMatrix struct {
	AllowFailures []rawRule `yaml:"allow_failures"`
	Exclude       []rawRule `yaml:"exclude"`
	Include       []rawRule `yaml:"include"`
	FastFinish    bool      `yaml:"fast_finish"`
}

// rawRule mirrors one allow_failures, exclude or include entry.
type rawRule struct {
	OS   string     `yaml:"os"`
	Name string     `yaml:"name"`
	Env  stringList `yaml:"env"`
}

// rawCache accepts false, a mapping with directories, or a language cache
// name, which is reported and ignored.
type rawCache struct {
	Directories []string
	warnings    []string
	disabled    bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *rawCache) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var enabled bool
		if err := node.Decode(&enabled); err == nil {
			c.disabled = !enabled
			return nil
		}
		c.warnings = append(c.warnings, fmt.Sprintf("line %d: language cache %q is not supported; use cache.directories", node.Line, node.Value))
		return nil
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			key, value := node.Content[i].Value, node.Content[i+1]
			if key != "directories" {
				c.warnings = append(c.warnings, fmt.Sprintf("line %d: cache.%s is not supported", node.Content[i].Line, key))
				continue
			}
			var dirs stringList
			if err := value.Decode(&dirs); err != nil {
				return fmt.Errorf("cache.directories: %w", err)
			}
			c.Directories = dirs
		}
		return nil
	default:
		return fmt.Errorf("line %d: cache must be a boolean or a mapping", node.Line)
	}
}

// rawNotifications mirrors the notifications section.
type rawNotifications struct {
	Email    rawEmail    `yaml:"email"`
	Webhooks rawWebhooks `yaml:"webhooks"`
}

func (n rawNotifications) toDomain() domain.Notifications {
	email := domain.EmailNotification{
		Recipients: n.Email.Recipients,
		OnSuccess:  domain.NotifyPolicy(n.Email.OnSuccess),
		OnFailure:  domain.NotifyPolicy(n.Email.OnFailure),
		Enabled:    !n.Email.disabled,
	}
	return domain.Notifications{
		Email: email,
		Webhooks: domain.WebhookNotification{
			URLs:      n.Webhooks.URLs,
			OnSuccess: domain.NotifyPolicy(n.Webhooks.OnSuccess),
			OnFailure: domain.NotifyPolicy(n.Webhooks.OnFailure),
		},
	}
}

// rawEmail accepts false, recipients, or a mapping.
type rawEmail struct {
	OnSuccess  string     `yaml:"on_success"`
	OnFailure  string     `yaml:"on_failure"`
	Recipients stringList `yaml:"recipients"`
	disabled   bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *rawEmail) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var enabled bool
		if err := node.Decode(&enabled); err == nil {
			e.disabled = !enabled
			return nil
		}
		e.Recipients = stringList{node.Value}
		return nil
	case yaml.SequenceNode:
		return node.Decode(&e.Recipients)
	case yaml.MappingNode:
		type plain rawEmail
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*e = rawEmail(p)
		return nil
	default:
		return fmt.Errorf("line %d: notifications.email must be a boolean, a list or a mapping", node.Line)
	}
}

// rawWebhooks accepts a URL, a list of URLs, or a mapping.
type rawWebhooks struct {
	OnSuccess string     `yaml:"on_success"`
	OnFailure string     `yaml:"on_failure"`
	URLs      stringList `yaml:"urls"`
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (w *rawWebhooks) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode, yaml.SequenceNode:
		return node.Decode(&w.URLs)
	case yaml.MappingNode:
		type plain rawWebhooks
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*w = rawWebhooks(p)
		return nil
	default:
		return fmt.Errorf("line %d: notifications.webhooks must be a URL, a list or a mapping", node.Line)
	}
}
