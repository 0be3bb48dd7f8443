// Command orcactl drives the SMELLIE controller through a calibration run.
//
// Usage:
//
//	orcactl run --config orcactl.toml
//	orcactl simulate --listen 127.0.0.1:50007 --fault set-ls-channel#2=timeout
//	orcactl plan
package main

import "os"

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
