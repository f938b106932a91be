// Command proxyrotator is a local shadowsocks-style forward proxy: it
// speaks SOCKS5 and/or plain HTTP on the local side and relays traffic
// through an encrypted tunnel to one of a pool of upstream servers.
package main

import "github.com/romeomihailus/proxyrotator/cmd"

func main() {
	cmd.Execute()
}
