/*
Package imports rebuilds bundled modules inside an isolated context.

A bundler's module table maps module ids to factory functions. An import map
names which of those modules a worker wants and under which logical names.
The Resolver turns the map into JavaScript that runs every factory, in map
order, against a small (module, exports, require) triple. Inside the context
the Shim backs that triple: require only sees modules provided earlier, so a
dependency listed after its dependent fails the boot with an *ImportError.

Tables come from a directory of module files (LoadDir) or from a manifest
(LoadManifest); import maps from YAML, TOML or JSON files (LoadImportMap).
*/
package imports
