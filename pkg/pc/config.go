package pc

import "github.com/imdario/mergo"

// ICETransportPolicy restricts which candidate types the engine may use.
// The zero value allows all transports.
type ICETransportPolicy int

const (
	ICETransportPolicyAll ICETransportPolicy = iota
	ICETransportPolicyRelay
	ICETransportPolicyNoHost
	ICETransportPolicyNone
)

func (p ICETransportPolicy) String() string {
	switch p {
	case ICETransportPolicyAll:
		return "all"
	case ICETransportPolicyRelay:
		return "relay"
	case ICETransportPolicyNoHost:
		return "nohost"
	case ICETransportPolicyNone:
		return "none"
	default:
		return "unknown"
	}
}

// BundlePolicy selects the engine's media bundling strategy.
type BundlePolicy int

const (
	BundlePolicyBalanced BundlePolicy = iota
	BundlePolicyMaxBundle
	BundlePolicyMaxCompat
)

func (p BundlePolicy) String() string {
	switch p {
	case BundlePolicyBalanced:
		return "balanced"
	case BundlePolicyMaxBundle:
		return "max-bundle"
	case BundlePolicyMaxCompat:
		return "max-compat"
	default:
		return "unknown"
	}
}

// SdpSemantic selects the SDP dialect negotiated with the engine.
type SdpSemantic int

const (
	SdpSemanticUnifiedPlan SdpSemantic = iota
	SdpSemanticPlanB
)

func (s SdpSemantic) String() string {
	switch s {
	case SdpSemanticUnifiedPlan:
		return "unified-plan"
	case SdpSemanticPlanB:
		return "plan-b"
	default:
		return "unknown"
	}
}

// ICEServer is one STUN or TURN server entry.
type ICEServer struct {
	Urls     []string
	Username string
	Password string
}

// ConnectionConfig configures a new connection. Zero-value fields are filled
// from DefaultConnectionConfig when the connection is created.
type ConnectionConfig struct {
	ICEServers         []ICEServer
	ICETransportPolicy ICETransportPolicy
	BundlePolicy       BundlePolicy
	SdpSemantic        SdpSemantic
}

// DefaultConnectionConfig returns the configuration used when fields are
// left unset: a public STUN server, all transports, balanced bundling,
// Unified Plan.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		ICEServers: []ICEServer{
			{Urls: []string{"stun:stun.l.google.com:19302"}},
		},
	}
}

func (c ConnectionConfig) withDefaults() ConnectionConfig {
	defaults := DefaultConnectionConfig()
	// mergo fills only unset fields, an explicit server list is preserved.
	_ = mergo.Merge(&c, defaults)
	return c
}
