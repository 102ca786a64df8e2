// Package platform finds platform directories and validates their manifests.
//
// A platform directory contains a manifest file, an optional parser entry point, and a test
// directory with fixture files. Discovery only decides which directory names are candidates;
// Load turns one candidate into a Descriptor or explains why it cannot be tested.
package platform
