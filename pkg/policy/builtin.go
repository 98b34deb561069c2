package policy

// GetBuiltinPolicies returns all built-in policies.
func GetBuiltinPolicies() []Policy {
	return []Policy{
		uniqueComponentNamesPolicy(),
		internalAPIClaimsPolicy(),
		healthCheckPathPolicy(),
		bundleNamingPolicy(),
	}
}

// uniqueComponentNamesPolicy rejects microservices and micro-frontends sharing a name.
func uniqueComponentNamesPolicy() Policy {
	return Policy{
		Name:        "unique-component-names",
		Description: "Microservice and micro-frontend names must be unique within a bundle",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"naming", "components"},
		Rego: `package bundlectl.components

import rego.v1

components := array.concat(
	object.get(input.descriptor, "microservices", []),
	object.get(input.descriptor, "microfrontends", []),
)

names := [c.name | some c in components]

deny contains violation if {
	some name in names
	count([n | some n in names; n == name]) > 1
	violation := {
		"message": sprintf("Component name '%s' is used more than once", [name]),
		"path": "$",
	}
}
`,
	}
}

// internalAPIClaimsPolicy requires internal API claims to name a microservice of the bundle.
func internalAPIClaimsPolicy() Policy {
	return Policy{
		Name:        "internal-api-claims",
		Description: "Internal API claims must reference a microservice declared in the same bundle",
		Severity:    SeverityError,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"api", "components"},
		Rego: `package bundlectl.apiclaims

import rego.v1

services := {ms.name | some ms in object.get(input.descriptor, "microservices", [])}

deny contains violation if {
	some i, mfe in object.get(input.descriptor, "microfrontends", [])
	some j, claim in object.get(mfe, "apiClaims", [])
	claim.type == "internal"
	not claim.serviceName in services
	violation := {
		"message": sprintf("API claim '%s' of '%s' references unknown microservice '%s'", [claim.name, mfe.name, claim.serviceName]),
		"path": sprintf("$.microfrontends[%d].apiClaims[%d].serviceName", [i, j]),
	}
}
`,
	}
}

// healthCheckPathPolicy asks spring-boot microservices to declare their health endpoint.
func healthCheckPathPolicy() Policy {
	return Policy{
		Name:        "healthcheck-path",
		Description: "Spring Boot microservices should declare healthCheckPath",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"operations"},
		Rego: `package bundlectl.healthcheck

import rego.v1

deny contains violation if {
	some i, ms in object.get(input.descriptor, "microservices", [])
	ms.stack == "spring-boot"
	not ms.healthCheckPath
	violation := {
		"message": sprintf("Microservice '%s' does not declare healthCheckPath", [ms.name]),
		"path": sprintf("$.microservices[%d]", [i]),
	}
}
`,
	}
}

// bundleNamingPolicy flags bundle names with consecutive separators.
func bundleNamingPolicy() Policy {
	return Policy{
		Name:        "bundle-naming",
		Description: "Bundle names should not contain consecutive dots or dashes",
		Severity:    SeverityWarning,
		Enabled:     true,
		Builtin:     true,
		Tags:        []string{"naming"},
		Rego: `package bundlectl.naming

import rego.v1

deny contains violation if {
	name := input.descriptor.name
	is_string(name)
	regex.match("[.-]{2}", name)
	violation := {
		"message": sprintf("Bundle name '%s' should not contain consecutive separators", [name]),
		"path": "$.name",
	}
}
`,
	}
}
