/*
	Package seisvol provides types, constants, and functions that have no other dependencies
	and can be used by all packages within the seismic volume service.  This includes
	logging, the shared error kinds, record serialization, and small file utilities.
*/
package seisvol

// Version is reported by the server info endpoint and the CLI about command.
const Version = "0.3.1"
