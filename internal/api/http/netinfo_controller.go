package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"conncheck/agent/internal/netinfo"
)

// NetInfoController serves the informational interface endpoints. Failures
// here degrade to "unknown"; they never block or fail a run.
type NetInfoController struct {
	resolver *netinfo.PublicIPResolver
	log      *slog.Logger
}

func NewNetInfoController(resolver *netinfo.PublicIPResolver, log *slog.Logger) *NetInfoController {
	if log == nil {
		log = slog.Default()
	}
	return &NetInfoController{resolver: resolver, log: log}
}

func (n *NetInfoController) Interfaces(c *gin.Context) {
	ips, err := netinfo.LocalIPv4s()
	if err != nil {
		n.log.Error("interface enumeration failed", "error", err)
		ips = nil
	}
	c.JSON(http.StatusOK, gin.H{"ipv4": ips})
}

func (n *NetInfoController) PublicIP(c *gin.Context) {
	localIP := c.Query("local_ip")

	addr, err := n.resolver.Resolve(c.Request.Context(), localIP)
	if err != nil {
		n.log.Warn("public IP lookup failed", "local_ip", localIP, "error", err)
		c.JSON(http.StatusOK, gin.H{"local_ip": localIP, "public_ip": "unknown"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"local_ip": localIP, "public_ip": addr})
}
