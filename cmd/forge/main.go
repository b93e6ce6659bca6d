// Package main provides forge, a command-line front end to the dice, table,
// name, encounter and generator engines.
//
// Usage:
//
//	forge [-config file] [-content dir] [-seed n] [-json] [-v] <command> [args]
//
// Commands:
//
//	roll <notation | text>        roll an expression, or every dice span in text
//	parse <notation>              print the canonical form of an expression
//	sample [-n N] <table>         draw N rows from a content table
//	name [-n N] [-pattern P] <catalog>
//	                              expand names from a catalog
//	encounter -party CxL [-monster CxCR] [-tier T]
//	                              rate an encounter, or print a tier budget
//	generate <generator> [key=value ...]
//	                              run a generator script
//	list [tables | names | generators]
package main

import "os"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
