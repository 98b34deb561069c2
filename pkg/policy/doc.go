// Package policy evaluates Open Policy Agent (OPA) Rego policies against
// bundle descriptors.
//
// Structural rules live in the descriptor rule trees; policies cover the
// cross-cutting conventions a rule tree cannot express, such as names being
// unique across components or internal API claims pointing at a declared
// microservice.
//
// # Architecture
//
//  1. Engine - compiles policies and evaluates their deny sets
//  2. Loader - reads .rego and .json policies from files and directories
//  3. Built-in policies - shipped with bundlectl and always loaded
//
// # Usage
//
//	eng, err := policy.NewEngine(logger)
//	if err != nil {
//	    return err
//	}
//	eng.SetFailOn(policy.SeverityError)
//
//	if err := eng.LoadPolicies(ctx, []string{"policies"}); err != nil {
//	    return err
//	}
//
//	result, err := eng.Evaluate(ctx, doc, &policy.Context{Operation: "validate"})
//	if err != nil {
//	    return err
//	}
//	for _, v := range result.Violations {
//	    fmt.Printf("%s: %s (%s)\n", v.Policy, v.Message, v.Path)
//	}
//
// # Writing Policies
//
// A policy is a Rego module with a deny set. The input document is
// {"descriptor": <parsed descriptor>, "context": {...}}. Deny entries are
// either strings or objects with a message and, optionally, severity and
// path:
//
//	# Bundles must carry a description.
//	# severity: error
//	package custom.description
//
//	import rego.v1
//
//	deny contains violation if {
//	    not input.descriptor.description
//	    violation := {"message": "Bundle description is required", "path": "$.description"}
//	}
//
// The leading comment block becomes the policy description. A
// `# severity:` header sets the default severity, which is warning otherwise.
//
// # Built-in Policies
//
//   - unique-component-names (error)
//   - internal-api-claims (error)
//   - healthcheck-path (warning)
//   - bundle-naming (warning)
//
// # Thread Safety
//
// Engine and Loader are safe for concurrent use.
package policy
