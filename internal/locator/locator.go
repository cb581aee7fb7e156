// File: internal/locator/locator.go
package locator

import (
	"bytes"
	"embed"
	"fmt"
	"io"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/xkilldash9x/filterctl/internal/router"
)

// Element is a logical UI element name used by the workflow.
type Element string

const (
	LoginUsername Element = "login.username"
	LoginPassword Element = "login.password"
	LoginSubmit   Element = "login.submit"
	LoginError    Element = "login.error"
	AuthMarker    Element = "auth.marker"
	FilterMarker  Element = "filter.marker"
	FilterEnable  Element = "filter.enable"
	FilterDisable Element = "filter.disable"
	FilterToggle  Element = "filter.toggle"
	FilterApply   Element = "filter.apply"
	SaveConfirm   Element = "save.confirm"
)

// Strategy selects how a selector value is interpreted by the browser layer.
type Strategy string

const (
	StrategyCSS   Strategy = "css"
	StrategyXPath Strategy = "xpath"
	StrategyID    Strategy = "id"
	StrategyName  Strategy = "name"
)

// Selector is a concrete way of finding one element.
type Selector struct {
	Strategy Strategy `yaml:"strategy"`
	Value    string   `yaml:"value"`
}

func (s Selector) String() string { return string(s.Strategy) + "=" + s.Value }

// ControlKind describes the shape of the filter switch on the settings page.
type ControlKind string

const (
	// ControlRadioPair is an Enable/Disable pair of radio inputs.
	ControlRadioPair ControlKind = "radio_pair"
	// ControlCheckbox is a single checkbox, checked meaning enabled.
	ControlCheckbox ControlKind = "checkbox"
)

// Table maps logical elements to selectors for one router model.
type Table struct {
	Model          string               `yaml:"model"`
	Description    string               `yaml:"description"`
	LoginPath      string               `yaml:"login_path"`
	FilterPaths    []string             `yaml:"filter_paths"`
	AuthURLPattern string               `yaml:"auth_url_pattern"`
	Control        ControlKind          `yaml:"control"`
	Elements       map[Element]Selector `yaml:"elements"`

	authURL *regexp.Regexp
}

// Resolve returns the selector for a logical element.
func (t *Table) Resolve(name Element) (Selector, error) {
	sel, ok := t.Elements[name]
	if !ok || sel.Value == "" {
		return Selector{}, router.NewError(router.KindUnknownElement, router.StageConfig, nil,
			"locator table %q has no mapping for %q", t.Model, name)
	}
	return sel, nil
}

// Has reports whether an optional element is mapped.
func (t *Table) Has(name Element) bool {
	sel, ok := t.Elements[name]
	return ok && sel.Value != ""
}

// AuthURL returns the compiled post-login URL pattern, or nil when unset.
func (t *Table) AuthURL() *regexp.Regexp { return t.authURL }

// Required lists the elements the workflow resolves unconditionally for this control kind.
func (t *Table) Required() []Element {
	req := []Element{LoginUsername, LoginPassword, LoginSubmit, FilterMarker, FilterApply}
	switch t.Control {
	case ControlCheckbox:
		req = append(req, FilterToggle)
	default:
		req = append(req, FilterEnable, FilterDisable)
	}
	if t.AuthURLPattern == "" {
		req = append(req, AuthMarker)
	}
	return req
}

// Validate checks the table is usable before any browser work starts.
func (t *Table) Validate() error {
	if t.Model == "" {
		return router.Configf("locator table has no model name")
	}
	switch t.Control {
	case ControlRadioPair, ControlCheckbox:
	default:
		return router.Configf("locator table %q: unsupported control kind %q", t.Model, t.Control)
	}
	if !strings.HasPrefix(t.LoginPath, "/") {
		return router.Configf("locator table %q: login_path %q must be absolute", t.Model, t.LoginPath)
	}
	if len(t.FilterPaths) == 0 {
		return router.Configf("locator table %q: at least one filter path is required", t.Model)
	}
	for _, p := range t.FilterPaths {
		if !strings.HasPrefix(p, "/") {
			return router.Configf("locator table %q: filter path %q must be absolute", t.Model, p)
		}
	}
	for name, sel := range t.Elements {
		switch sel.Strategy {
		case StrategyCSS, StrategyXPath, StrategyID, StrategyName:
		default:
			return router.Configf("locator table %q: element %q has unknown strategy %q", t.Model, name, sel.Strategy)
		}
	}
	for _, name := range t.Required() {
		if _, err := t.Resolve(name); err != nil {
			return err
		}
	}
	if t.AuthURLPattern != "" {
		re, err := regexp.Compile(t.AuthURLPattern)
		if err != nil {
			return router.Configf("locator table %q: auth_url_pattern: %v", t.Model, err)
		}
		t.authURL = re
	}
	return nil
}

//go:embed tables/*.yaml
var builtinFS embed.FS

// DefaultModel is used when no model is configured.
const DefaultModel = "asus"

// Models lists the built-in table names.
func Models() []string {
	entries, err := builtinFS.ReadDir("tables")
	if err != nil {
		return nil
	}
	models := make([]string, 0, len(entries))
	for _, e := range entries {
		models = append(models, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	sort.Strings(models)
	return models
}

// Builtin returns a validated built-in table.
func Builtin(model string) (*Table, error) {
	raw, err := builtinFS.ReadFile("tables/" + model + ".yaml")
	if err != nil {
		return nil, router.Configf("no built-in locator table for model %q (known: %s)", model, strings.Join(Models(), ", "))
	}
	return Decode(bytes.NewReader(raw))
}

// Load reads and validates a table from a YAML file.
func Load(file string) (*Table, error) {
	expanded, err := homedir.Expand(file)
	if err != nil {
		return nil, router.Configf("locator file %q: %v", file, err)
	}
	f, err := os.Open(expanded)
	if err != nil {
		return nil, router.Configf("locator file: %v", err)
	}
	defer f.Close()
	return Decode(f)
}

// Decode parses a YAML table and validates it. Unknown keys are rejected.
func Decode(r io.Reader) (*Table, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var t Table
	if err := dec.Decode(&t); err != nil {
		return nil, router.Configf("decoding locator table: %v", err)
	}
	if t.Control == "" {
		t.Control = ControlRadioPair
	}
	for name, sel := range t.Elements {
		if sel.Strategy == "" {
			sel.Strategy = StrategyCSS
			t.Elements[name] = sel
		}
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Select picks a user file when given, otherwise the named built-in.
func Select(model, file string) (*Table, error) {
	if file != "" {
		t, err := Load(file)
		if err != nil {
			return nil, err
		}
		if model != "" && model != DefaultModel && t.Model != model {
			return nil, router.Configf("locator file %q describes model %q, not %q", file, t.Model, model)
		}
		return t, nil
	}
	if model == "" {
		model = DefaultModel
	}
	return Builtin(model)
}

// Encode writes the table back out as YAML.
func (t *Table) Encode(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(t); err != nil {
		return fmt.Errorf("encoding locator table: %w", err)
	}
	return enc.Close()
}
