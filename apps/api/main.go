package main

import _ "net/http/pprof" // registers the /debug/pprof handlers on the debug server

func main() {
	startWithDig()
}
