// Package descriptor defines the bundle descriptor: its rule trees per
// descriptor version, the typed Bundle it decodes into, and loading and
// encoding in YAML, JSON and CUE.
//
// A descriptor is checked in three steps:
//
//	doc, _, err := descriptor.LoadFile("bundle.yaml")
//	registry := descriptor.NewRegistry(descriptor.DefaultVersion)
//	bundle, version, err := registry.Validate(doc)
//
// Rule trees are built fresh by BundleRule and are never modified after
// registration, so a Registry can be shared between goroutines.
package descriptor
