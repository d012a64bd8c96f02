package config

import (
	"os"
	"sync"
)

// dockerHostAlias reaches the host machine from inside Docker Desktop and from
// Linux containers started with --add-host=host.docker.internal:host-gateway.
const dockerHostAlias = "host.docker.internal"

var inContainer = sync.OnceValue(func() bool {
	_, err := os.Stat("/.dockerenv")
	return err == nil
})

// ResolveHostForDocker rewrites loopback hosts to the Docker host alias when
// the process runs in a container, so a local Postgres or Redis stays reachable.
func ResolveHostForDocker(host string) string {
	return resolveHost(host, inContainer())
}

func resolveHost(host string, containerized bool) string {
	if !containerized {
		return host
	}
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return dockerHostAlias
	default:
		return host
	}
}
