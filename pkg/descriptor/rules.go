package descriptor

import (
	v "github.com/bundlectl/bundlectl/pkg/validation"
)

const (
	maxNameLength        = 50
	maxDescriptionLength = 255

	namePattern    = `^[a-z0-9]([a-z0-9.-]*[a-z0-9])?$`
	versionPattern = `^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`
	urlPathPattern = `^/[^\s]*$`
	customElement  = `^[a-z][a-z0-9]*(-[a-z0-9]+)+$`
)

var (
	nameFormat = v.Pattern(namePattern).WithHint(
		"Should contain only lowercase letters, digits, dots and dashes, and start and end with a letter or digit")
	versionFormat       = v.Pattern(versionPattern).WithHint("Should be a semantic version, e.g. 1.0.0")
	urlPathFormat       = v.Pattern(urlPathPattern).WithHint("Should be an absolute path starting with /")
	customElementFormat = v.Pattern(customElement).WithHint("Should be a lowercase custom element name containing a dash")
)

// componentName is the name rule shared by the bundle and its components.
func componentName() *v.PrimitiveRule {
	return v.String(v.MaxLength(maxNameLength), nameFormat)
}

// commandsRule is only accepted on custom-stack components.
func commandsRule() *v.ObjectRule {
	return v.Object(
		v.F("build", v.String().Optional()),
		v.F("run", v.String().Optional()),
		v.F("pack", v.String().Optional()),
	).Optional().DependsOnField("stack", v.Equals(StackCustom))
}

func titlesRule() *v.ObjectRule {
	return v.Object().With(v.StringMap())
}

// APIClaimRule returns the rule for a micro-frontend API claim. Internal
// claims target a microservice of the same bundle and may not name one;
// external claims must.
func APIClaimRule() *v.UnionRule {
	internal := v.Object(
		v.F("name", v.String()),
		v.F("type", v.String(v.OneOf(ClaimInternal))),
		v.F("serviceName", v.String()),
		v.F("bundle", v.String().Optional().DependsOnField("type", v.Equals(ClaimExternal))),
	)
	external := v.Object(
		v.F("name", v.String()),
		v.F("type", v.String(v.OneOf(ClaimExternal))),
		v.F("serviceName", v.String()),
		v.F("bundle", v.String(nameFormat)),
	)
	return v.Union(internal, external)
}

// EnvVarRule returns the rule for a microservice environment variable.
func EnvVarRule() *v.UnionRule {
	literal := v.Object(
		v.F("name", v.String()),
		v.F("value", v.String()),
	)
	secret := v.Object(
		v.F("name", v.String()),
		v.F("secretKeyRef", v.Object(
			v.F("name", v.String()),
			v.F("key", v.String()),
		)),
	)
	return v.Union(literal, secret)
}

// MicroserviceRule returns the rule for one entry of "microservices".
func MicroserviceRule() *v.ObjectRule {
	return v.Object(
		v.F("name", componentName()),
		v.F("stack", v.String(v.OneOf(StackSpringBoot, StackNode, StackCustom))),
		v.F("dbms", v.String(v.OneOf("none", "postgresql", "mysql", "embedded")).Optional()),
		v.F("healthCheckPath", v.String(urlPathFormat).Optional()),
		v.F("ingressPath", v.String(urlPathFormat).Optional()),
		v.F("version", v.String(versionFormat).Optional()),
		v.F("commands", commandsRule()),
		v.F("env", v.Array(EnvVarRule()).Optional()),
		v.F("roles", v.Array(v.String()).Optional()),
		v.F("permissions", v.Array(v.Object(
			v.F("clientId", v.String()),
			v.F("role", v.String()),
		)).Optional()),
		v.F("resources", v.Object(
			v.F("cpu", v.String().Optional()),
			v.F("memory", v.String().Optional()),
			v.F("storage", v.String().Optional()),
		).Optional()),
	)
}

// microFrontendBase holds the fields every micro-frontend type declares.
func microFrontendBase(mfeType string) *v.ObjectRule {
	return v.Object(
		v.F("name", componentName()),
		v.F("stack", v.String(v.OneOf(StackReact, StackAngular, StackCustom))),
		v.F("type", v.String(v.OneOf(mfeType))),
		v.F("group", v.String()),
		v.F("customElement", v.String(customElementFormat)),
		v.F("titles", titlesRule()),
		v.F("publicFolder", v.String().Optional()),
		v.F("apiClaims", v.Array(APIClaimRule()).Optional()),
		v.F("commands", commandsRule()),
	)
}

func widgetRule() *v.ObjectRule {
	return microFrontendBase(MicroFrontendWidget).Extend(
		v.F("contextParams", v.Array(v.String()).Optional()),
		v.F("params", v.Array(v.Object(
			v.F("name", v.String()),
			v.F("description", v.String().Optional()),
		)).Optional()),
	)
}

func appBuilderRule() *v.ObjectRule {
	return microFrontendBase(MicroFrontendAppBuilder).Extend(
		v.F("slot", v.String(v.OneOf("primary-header", "primary-menu", "content"))),
		v.F("paths", v.Array(v.String(urlPathFormat)).Optional()),
		v.F("nav", v.Array(v.Object(
			v.F("label", titlesRule()),
			v.F("target", v.String()),
			v.F("type", v.String(v.OneOf(ClaimInternal, ClaimExternal))),
		)).Optional()),
	)
}

// MicroFrontendRule returns the micro-frontend union for a descriptor version.
// Version v6 adds widget-config micro-frontends and lets a widget name its
// configuration micro-frontend.
func MicroFrontendRule(version string) *v.UnionRule {
	if version == VersionV5 {
		return v.Union(widgetRule(), appBuilderRule())
	}
	widget := widgetRule().Extend(
		v.F("configMfe", v.String(nameFormat).Optional()),
	)
	return v.Union(widget, appBuilderRule(), microFrontendBase(MicroFrontendWidgetConfig))
}

// BundleRule returns the top-level rule tree of a descriptor version.
func BundleRule(version string) *v.ObjectRule {
	return v.Object(
		v.F("name", componentName()),
		v.F("version", v.String(versionFormat)),
		v.F("descriptorVersion", v.String(v.OneOf(version)).Optional()),
		v.F("type", v.String(v.OneOf(BundleTypeStandard, BundleTypeSystemLevel)).Optional()),
		v.F("description", v.String(v.MaxLength(maxDescriptionLength)).Optional()),
		v.F("thumbnail", v.String().Optional()),
		v.F("svc", v.Array(v.String()).Optional()),
		v.F("microservices", v.Array(MicroserviceRule()).Optional()),
		v.F("microfrontends", v.Array(MicroFrontendRule(version)).Optional()),
	)
}
