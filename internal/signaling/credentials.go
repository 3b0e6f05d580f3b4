package signaling

import (
	"github.com/pion/webrtc/v4"

	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/config"
	"github.com/wilsonzlin/aero/proxy/webrtc-peer-signaling/internal/turnrest"
)

// credentialSource is the ICE server list plus the TURN issuer that fills in
// its TURN entries. It is swapped as a unit on config reload.
type credentialSource struct {
	servers []webrtc.ICEServer
	turn    *turnrest.Issuer
}

// iceServersFor returns a copy of the ICE list with fresh TURN REST
// credentials for userID on every TURN entry. An empty userID gets a random
// one. When no TURN issuer is configured, TURN entries with static
// credentials are kept and those without are dropped since clients cannot use
// them. The bool reports whether a TURN entry was wanted but could not be
// served.
func (c *credentialSource) iceServersFor(userID string) ([]webrtc.ICEServer, bool) {
	if c == nil {
		return []webrtc.ICEServer{}, false
	}
	out := make([]webrtc.ICEServer, 0, len(c.servers))

	var (
		creds    turnrest.Credentials
		credsOK  bool
		issued   bool
		degraded bool
	)
	for _, server := range c.servers {
		if !config.IsTURNServer(server) {
			out = append(out, server)
			continue
		}
		if !issued {
			if userID == "" {
				creds, credsOK = c.turn.IssueAnonymous()
			} else {
				creds, credsOK = c.turn.Issue(userID, 0)
			}
			issued = true
		}
		if credsOK {
			server.Username = creds.Username
			server.Credential = creds.Credential
			out = append(out, server)
			continue
		}
		if cred, _ := server.Credential.(string); server.Username != "" && cred != "" {
			out = append(out, server)
			continue
		}
		degraded = true
	}
	return out, degraded
}
