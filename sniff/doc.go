// Package sniff implements the rule-based identification engine bundled
// with the magic package.
//
// The engine matches the leading bytes of a file against rules loaded from
// databases, falling back to text classification and finally to plain
// binary data. It never shells out and reads all content through a go-billy
// filesystem, so it works against in-memory filesystems in tests.
//
// # Databases
//
// A database is a YAML document with a single rules list. Rules are
// matched in load order and the first rule whose tests all pass wins:
//
//	rules:
//	  - description: PNG image data
//	    mime: image/png
//	    extensions: [png]
//	    tests:
//	      - offset: 0
//	        hex: 89504e470d0a1a0a
//	  - description: POSIX shell script text executable
//	    mime: text/x-shellscript
//	    extensions: [sh]
//	    text: true
//	    tests:
//	      - offset: 0
//	        string: "#!/bin/sh"
//
// Each test pins the bytes expected at an offset, either as a hex string
// or as a literal string. Rules marked text get their charset detected
// from the content; all others report charset binary.
//
// # Compiled Databases
//
// Compile translates databases into a binary form that loads without
// parsing YAML. Compiled files start with the marker bytes "MGC\x01" and
// are recognized by Load transparently. Load also accepts colon-separated
// path lists, so a session can layer several databases:
//
//	err := session.Load("/etc/sniff/base.mgc:/etc/sniff/local.yaml")
//
// # Sessions
//
// Engine values are immutable and cheap; all mutable state lives in the
// Session. A session carries the flags given to Open, the tunable
// parameters, and the loaded rules. Sessions are not safe for concurrent
// use.
package sniff
