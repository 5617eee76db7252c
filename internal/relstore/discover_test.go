package relstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParsePacmanQlServicesFiltersToSystemdUnitDir(t *testing.T) {
	out := []byte(
		"nginx /usr/bin/nginx\n" +
			"nginx /usr/lib/systemd/system/nginx.service\n" +
			"nginx /etc/nginx/nginx.conf\n" +
			"nginx /usr/share/doc/nginx/README.service\n",
	)
	services := parsePacmanQlServices(out)
	assert.Equal(t, []string{"nginx.service"}, services)
}

func TestParsePacmanQlBinariesMatchesBinAndSbin(t *testing.T) {
	out := []byte(
		"nginx /usr/bin/nginx\n" +
			"nginx /usr/sbin/nginx-helper\n" +
			"nginx /etc/nginx/nginx.conf\n",
	)
	bins := parsePacmanQlBinaries(out)
	assert.ElementsMatch(t, []string{"/usr/bin/nginx", "/usr/sbin/nginx-helper"}, bins)
}

func TestParseSystemctlListUnitsTakesFirstColumn(t *testing.T) {
	out := []byte(
		"nginx.service  loaded active running A webserver\n" +
			"sshd.service   loaded active running OpenSSH Daemon\n",
	)
	units := parseSystemctlListUnits(out)
	assert.Equal(t, []string{"nginx.service", "sshd.service"}, units)
}

func TestParsePacmanQlServicesEmptyOutputYieldsNoServices(t *testing.T) {
	assert.Nil(t, parsePacmanQlServices([]byte{}))
}

func TestParseSystemctlShowExecStartBatchSplitsBlocksInUnitOrder(t *testing.T) {
	out := []byte(
		"ExecStart={ path=/usr/bin/nginx ; argv[]=/usr/bin/nginx -g daemon off ; }\n\n" +
			"ExecStart={ path=/usr/bin/sshd ; argv[]=/usr/bin/sshd -D ; }\n",
	)
	got := parseSystemctlShowExecStartBatch(out, []string{"nginx.service", "sshd.service"})
	assert.Contains(t, got["nginx.service"], "/usr/bin/nginx")
	assert.Contains(t, got["sshd.service"], "/usr/bin/sshd")
}

func TestDiscoverPackageServiceLinksDegradesGracefullyWithoutFabricatingLinks(t *testing.T) {
	// This test environment may or may not have pacman installed; either
	// way, discovery must degrade to an empty result, never panic.
	links := DiscoverPackageServiceLinks(context.Background(), "definitely-not-a-real-package-xyz")
	assert.LessOrEqual(t, len(links), 0)
}
