package descriptor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bundlectl/bundlectl/pkg/validation"
)

const validBundleYAML = `
name: my-bundle
version: 1.2.0
descriptorVersion: v5
description: Sample bundle
microservices:
  - name: orders
    stack: spring-boot
    dbms: postgresql
    healthCheckPath: /management/health
    env:
      - name: SPRING_PROFILES_ACTIVE
        value: prod
      - name: DB_PASSWORD
        secretKeyRef:
          name: orders-db
          key: password
    roles: [orders-admin]
microfrontends:
  - name: orders-table
    stack: react
    type: widget
    group: free
    customElement: orders-table
    titles:
      en: Orders
      it: Ordini
    apiClaims:
      - name: orders-api
        type: internal
        serviceName: orders
      - name: billing-api
        type: external
        serviceName: billing
        bundle: billing-bundle
  - name: orders-menu
    stack: react
    type: app-builder
    group: free
    customElement: orders-menu
    slot: primary-menu
    titles:
      en: Orders menu
`

func mustParse(t *testing.T, src string, f Format) map[string]interface{} {
	t.Helper()
	doc, err := Parse([]byte(src), f)
	require.NoError(t, err)
	obj, ok := doc.(map[string]interface{})
	require.True(t, ok, "expected a mapping, got %T", doc)
	return obj
}

func TestRegistry_Versions(t *testing.T) {
	r := NewRegistry("")
	assert.Equal(t, []string{VersionV5, VersionV6}, r.Versions())
	assert.Equal(t, DefaultVersion, r.DefaultVersion())

	_, ok := r.Lookup(VersionV6)
	assert.True(t, ok)
	_, ok = r.Lookup("v1")
	assert.False(t, ok)
}

func TestRegistry_Resolve(t *testing.T) {
	r := NewRegistry(VersionV6)

	version, rule, err := r.Resolve(map[string]interface{}{"name": "x"})
	require.NoError(t, err)
	assert.Equal(t, VersionV6, version)
	assert.NotNil(t, rule)

	version, _, err = r.Resolve(map[string]interface{}{"descriptorVersion": "v5"})
	require.NoError(t, err)
	assert.Equal(t, VersionV5, version)

	_, _, err = r.Resolve(map[string]interface{}{"descriptorVersion": "v9"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnknownVersion))
}

func TestRegistry_Register(t *testing.T) {
	r := NewRegistry("")
	r.Register("v7", BundleRule(VersionV6).Extend(
		validation.F("descriptorVersion", validation.String(validation.OneOf("v7"))),
	))
	assert.Contains(t, r.Versions(), "v7")

	_, version, err := r.Validate(map[string]interface{}{
		"name": "b", "version": "1.0.0", "descriptorVersion": "v7",
	})
	require.NoError(t, err)
	assert.Equal(t, "v7", version)
}

func TestRegistry_ValidateDecodesBundle(t *testing.T) {
	r := NewRegistry("")
	doc := mustParse(t, validBundleYAML, FormatYAML)

	bundle, version, err := r.Validate(doc)
	require.NoError(t, err)
	assert.Equal(t, VersionV5, version)

	assert.Equal(t, "my-bundle", bundle.Name)
	require.Len(t, bundle.Microservices, 1)
	ms := bundle.Microservices[0]
	assert.Equal(t, StackSpringBoot, ms.Stack)
	require.Len(t, ms.Env, 2)
	require.NotNil(t, ms.Env[1].SecretKeyRef)
	assert.Equal(t, "password", ms.Env[1].SecretKeyRef.Key)

	require.Len(t, bundle.MicroFrontends, 2)
	assert.Equal(t, "Ordini", bundle.MicroFrontends[0].Titles["it"])
	assert.Equal(t, "billing-bundle", bundle.MicroFrontends[0].APIClaims[1].Bundle)
	assert.Equal(t, "primary-menu", bundle.MicroFrontends[1].Slot)

	assert.Equal(t, []string{"orders", "orders-table", "orders-menu"}, bundle.ComponentNames())
	_, ok := bundle.Microservice("orders")
	assert.True(t, ok)
}

func TestRegistry_ValidateFailures(t *testing.T) {
	r := NewRegistry("")

	tests := []struct {
		name     string
		mutate   func(doc map[string]interface{})
		wantPath string
		check    func(t *testing.T, err error)
	}{
		{
			name:     "missing bundle name",
			mutate:   func(doc map[string]interface{}) { delete(doc, "name") },
			wantPath: "$.name",
		},
		{
			name: "bad bundle version",
			mutate: func(doc map[string]interface{}) {
				doc["version"] = "latest"
			},
			wantPath: "$.version",
		},
		{
			name: "microservice missing stack",
			mutate: func(doc map[string]interface{}) {
				ms := doc["microservices"].([]interface{})[0].(map[string]interface{})
				delete(ms, "stack")
			},
			wantPath: "$.microservices[0].stack",
		},
		{
			name: "commands on non custom stack",
			mutate: func(doc map[string]interface{}) {
				ms := doc["microservices"].([]interface{})[0].(map[string]interface{})
				ms["commands"] = map[string]interface{}{"build": "make"}
			},
			wantPath: "$.microservices[0].stack",
			check: func(t *testing.T, err error) {
				var de *validation.DependencyError
				require.True(t, errors.As(err, &de))
				assert.Equal(t, "commands", de.Field)
				assert.Equal(t, "stack", de.DependsOn)
			},
		},
		{
			name: "internal claim naming a bundle",
			mutate: func(doc map[string]interface{}) {
				mfe := doc["microfrontends"].([]interface{})[0].(map[string]interface{})
				claim := mfe["apiClaims"].([]interface{})[0].(map[string]interface{})
				claim["bundle"] = "other-bundle"
			},
			wantPath: "$.microfrontends[0].apiClaims[0].type",
			check: func(t *testing.T, err error) {
				assert.True(t, validation.IsDependencyError(err))
				assert.Contains(t, err.Error(), `Field "bundle" depends on field "type"`)
			},
		},
		{
			name: "external claim without bundle",
			mutate: func(doc map[string]interface{}) {
				mfe := doc["microfrontends"].([]interface{})[0].(map[string]interface{})
				claim := mfe["apiClaims"].([]interface{})[1].(map[string]interface{})
				delete(claim, "bundle")
			},
			check: func(t *testing.T, err error) {
				assert.True(t, validation.IsUnionError(err))
				assert.Contains(t, err.Error(), "Fix one of the following errors:")
			},
		},
		{
			name: "non string title",
			mutate: func(doc map[string]interface{}) {
				mfe := doc["microfrontends"].([]interface{})[1].(map[string]interface{})
				mfe["titles"] = map[string]interface{}{"en": 1}
			},
			check: func(t *testing.T, err error) {
				assert.True(t, validation.IsUnionError(err))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParse(t, validBundleYAML, FormatYAML)
			tt.mutate(doc)

			_, _, err := r.Validate(doc)
			require.Error(t, err)
			if tt.wantPath != "" {
				path, ok := validation.ErrorPath(err)
				require.True(t, ok, "error carries no path: %v", err)
				assert.Equal(t, tt.wantPath, path.String())
			}
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestRegistry_WidgetConfigRequiresV6(t *testing.T) {
	r := NewRegistry("")
	widgetConfig := map[string]interface{}{
		"name":          "orders-config",
		"stack":         "react",
		"type":          "widget-config",
		"group":         "free",
		"customElement": "orders-config",
		"titles":        map[string]interface{}{"en": "Config"},
	}

	doc := map[string]interface{}{
		"name":           "b",
		"version":        "1.0.0",
		"microfrontends": []interface{}{widgetConfig},
	}

	_, _, err := r.Validate(doc)
	require.Error(t, err)
	assert.True(t, validation.IsUnionError(err))

	doc["descriptorVersion"] = VersionV6
	_, version, err := r.Validate(doc)
	require.NoError(t, err)
	assert.Equal(t, VersionV6, version)
}

func TestParse_Formats(t *testing.T) {
	yamlDoc := mustParse(t, "name: b\nversion: 1.0.0\nsvc: [postgresql]\n", FormatYAML)
	jsonDoc := mustParse(t, `{"name": "b", "version": "1.0.0", "svc": ["postgresql"]}`, FormatJSON)
	cueDoc := mustParse(t, "name: \"b\"\nversion: \"1.0.0\"\nsvc: [\"postgresql\"]\n", FormatCUE)

	assert.Equal(t, yamlDoc, jsonDoc)
	assert.Equal(t, yamlDoc, cueDoc)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name   string
		src    string
		format Format
	}{
		{name: "yaml", src: "name: [unclosed", format: FormatYAML},
		{name: "json", src: `{"name": }`, format: FormatJSON},
		{name: "json trailing data", src: `{"name": "a"} {}`, format: FormatJSON},
		{name: "cue", src: "name: \"a\"\nname: \"b\"\n", format: FormatCUE},
		{name: "cue incomplete", src: "name: string\n", format: FormatCUE},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src), tt.format)
			require.Error(t, err)
			var le *LoadError
			require.True(t, errors.As(err, &le))
			assert.Equal(t, tt.format, le.Format)
		})
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "bundle.yml")
	require.NoError(t, os.WriteFile(path, []byte(validBundleYAML), 0o644))

	doc, format, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, format)
	assert.Equal(t, "my-bundle", doc.(map[string]interface{})["name"])

	_, _, err = LoadFile(filepath.Join(dir, "missing.json"))
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.True(t, errors.Is(err, os.ErrNotExist))

	_, _, err = LoadFile(filepath.Join(dir, "bundle.toml"))
	require.Error(t, err)
}

func TestLoadFile_CUEPosition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bundle.cue")
	require.NoError(t, os.WriteFile(path, []byte("name: \"a\"\nversion: 1 & 2\n"), 0o644))

	_, _, err := LoadFile(path)
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, 2, le.Line)
	assert.Contains(t, le.Error(), path+":2:")
}

func TestEncode_RoundTripsThroughEveryFormat(t *testing.T) {
	doc := mustParse(t, validBundleYAML, FormatYAML)

	for _, f := range Formats {
		t.Run(string(f), func(t *testing.T) {
			out, err := Encode(doc, f)
			require.NoError(t, err)

			back, err := Parse(out, f)
			require.NoError(t, err)
			assert.Equal(t, doc, back)
		})
	}
}

func TestEncode_TypedBundle(t *testing.T) {
	b := &Bundle{Name: "b", Version: "0.1.0", DescriptorVersion: VersionV5}

	out, err := Encode(b, FormatYAML)
	require.NoError(t, err)
	assert.Equal(t, "name: b\nversion: 0.1.0\ndescriptorVersion: v5\n", string(out))

	_, err = Encode(b, Format("toml"))
	assert.Error(t, err)
}

func TestFormatFromPath(t *testing.T) {
	for path, want := range map[string]Format{
		"bundle.yaml": FormatYAML,
		"bundle.YML":  FormatYAML,
		"bundle.json": FormatJSON,
		"bundle.cue":  FormatCUE,
	} {
		got, err := FormatFromPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, got, path)
	}

	_, err := FormatFromPath("bundle")
	assert.Error(t, err)
}
