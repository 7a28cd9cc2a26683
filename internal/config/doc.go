// Package config provides the tool configuration for jobsmith.
//
// Configuration is loaded from a single YAML file, jobsmith.yaml in the
// working directory by default, or the file named by the --config flag.
// A missing file means defaults. Unknown keys are rejected.
//
// # Example
//
//	managedBy: jobsmith
//	adoptUnmanaged: false
//	sources:
//	  - jobs/
//	remote:
//	  type: kubernetes
//	  kubernetes:
//	    namespace: ci
//	publish:
//	  concurrency: 8
//	  timeout: 5m
//	  actionTimeout: 20s
//
// A Config value is built once per pipeline run and passed explicitly to every
// component. There is no package-level configuration state.
//
// The package also defines ConfigurationError, the structured error used for
// problems in job-configuration source files. It carries file and line
// information.
package config
