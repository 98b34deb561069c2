// Package checks runs user-defined Starlark check scripts against bundle
// descriptors.
//
// A check script defines check(descriptor) and returns the problems it
// found, as a list of strings or dicts:
//
//	def check(descriptor):
//	    out = []
//	    for i, ms in enumerate(descriptor.get("microservices", [])):
//	        if not matches("^[a-z]", ms["name"]):
//	            out.append({
//	                "message": "microservice names start with a letter",
//	                "path": path("microservices", i, "name"),
//	            })
//	    return out
//
// The descriptor is frozen. Besides the Starlark universe, scripts can call
// struct(**kwargs), matches(pattern, s) and path(*elems). Output of print
// goes to the debug log. Each run is cancelled once the evaluator timeout
// expires.
package checks
