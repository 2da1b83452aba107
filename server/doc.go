/*
	Package server configures and launches the seisvol HTTP and RPC servers.

	Configuration is read from a TOML file with [server], [logging], [store],
	[cache], [auth], [kafka] and [mutations] sections.  The HTTP API is served
	under /api/ and is described by GET /api/help.  The RPC server handles the
	small set of commands used by the seisvol command line.
*/
package server
