// Package packager builds reproducible bundle archives.
//
// An archive is a gzip'd tar of the bundle directory named
// <name>-<version>.tgz. Excluded names, the output directory and non-regular
// files are left out.
package packager
