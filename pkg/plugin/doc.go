/*
Package plugin loads external action modules named in the config.

Two plugin forms resolve from the config's plugins list, in order:

 1. Compiled-in bundles, registered with RegisterBuiltin at program
    init. This is the usual deployment shape: a site builds its own
    zoidbergd binary importing its action packages.
 2. Go shared objects (buildmode=plugin), looked up by path. The object
    must export RegisterActions with type func(*action.Registry).

Either way the plugin's job is the same registration side effect: adding
its actions to the registry the engine validates bindings against. There
is no import-time magic; the registry is explicit and passed in.

A plugin name that resolves neither way is an error: fatal on first
load, logged and ignored (previous config retained) on reload.
*/
package plugin
