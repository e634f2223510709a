/*
Package config parses and validates the Zoidberg YAML configuration.

The document shape:

	plugins: [module_name, ...]          # optional
	gerrits:
	  - master:
	      host: gerrit.example.com
	      port: 29418
	      username: zoidberg
	      key_filename: /etc/zoidberg/id_rsa
	      project-pattern: ^nikki.*
	      events:
	        - type: ref-updated
	          action: zoidberg.SyncBranch
	          target: thirdparty
	          branch-pattern: ^(master|stable/.*)$
	      startup:
	        - action: zoidberg.SyncBranch
	          target: thirdparty
	          projects: [nikki]
	          branches: [master]

Patterns compile at load time; a bad regex fails the load with a
ValidationError. Every source gets an inactive SSH client constructed
from its connection tuple, activated lazily by the engine.

Binding entries pass unknown keys through in Extra, so plugin actions
can define their own settings without config changes here.

A Config exclusively owns its Sources and each Source its Client. The
one exception is the reload handover: when a new config's source has the
same connection tuple as the old one, the engine moves the old client
into the new source and nils the old slot, and CloseClients skips it.
*/
package config
