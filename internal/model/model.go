package model

import "time"

// Session is the locally persisted identity of the logged-in user.
type Session struct {
	UserIdentifier string `json:"Identifier" yaml:"identifier"`
	Firstname      string `json:"Firstname" yaml:"firstname"`
	Lastname       string `json:"Lastname" yaml:"lastname"`
	Email          string `json:"Email" yaml:"email"`
	IsAdmin        bool   `json:"IsAdmin" yaml:"is_admin"`
}

// SessionInfo is the backend's answer to a session probe. The user fields
// are only present while LoggedIn is true.
type SessionInfo struct {
	LoggedIn       bool    `json:"LoggedIn"`
	IsAdmin        bool    `json:"IsAdmin,omitempty"`
	UserIdentifier *string `json:"UserIdentifier,omitempty"`
	UserFirstname  *string `json:"UserFirstname,omitempty"`
	UserLastname   *string `json:"UserLastname,omitempty"`
	UserEmail      *string `json:"UserEmail,omitempty"`
}

// LoginProviderInfo describes an external (OAuth/OIDC) login provider.
type LoginProviderInfo struct {
	Identifier  string `json:"Identifier"`
	Name        string `json:"Name"`
	ProviderUrl string `json:"ProviderUrl"`
	CallbackUrl string `json:"CallbackUrl"`
}

// Interface is a managed WireGuard network endpoint.
type Interface struct {
	Identifier     string `json:"Identifier"`
	DisplayName    string `json:"DisplayName"`
	Mode           string `json:"Mode"` // server, client or any
	PrivateKey     string `json:"PrivateKey"`
	PublicKey      string `json:"PublicKey"`
	Disabled       bool   `json:"Disabled"`
	DisabledReason string `json:"DisabledReason"`
	SaveConfig     bool   `json:"SaveConfig"`

	ListenPort   int      `json:"ListenPort"`
	Addresses    []string `json:"Addresses"`
	Dns          []string `json:"Dns"`
	DnsSearch    []string `json:"DnsSearch"`
	Mtu          int      `json:"Mtu"`
	FirewallMark uint32   `json:"FirewallMark"`
	RoutingTable string   `json:"RoutingTable"`

	PreUp    string `json:"PreUp"`
	PostUp   string `json:"PostUp"`
	PreDown  string `json:"PreDown"`
	PostDown string `json:"PostDown"`

	PeerDefNetwork             []string `json:"PeerDefNetwork"`
	PeerDefDns                 []string `json:"PeerDefDns"`
	PeerDefDnsSearch           []string `json:"PeerDefDnsSearch"`
	PeerDefEndpoint            string   `json:"PeerDefEndpoint"`
	PeerDefAllowedIPs          []string `json:"PeerDefAllowedIPs"`
	PeerDefMtu                 int      `json:"PeerDefMtu"`
	PeerDefPersistentKeepalive int      `json:"PeerDefPersistentKeepalive"`
	PeerDefFirewallMark        uint32   `json:"PeerDefFirewallMark"`
	PeerDefRoutingTable        string   `json:"PeerDefRoutingTable"`
	PeerDefPreUp               string   `json:"PeerDefPreUp"`
	PeerDefPostUp              string   `json:"PeerDefPostUp"`
	PeerDefPreDown             string   `json:"PeerDefPreDown"`
	PeerDefPostDown            string   `json:"PeerDefPostDown"`

	// Calculated by the backend.
	EnabledPeers int `json:"EnabledPeers"`
	TotalPeers   int `json:"TotalPeers"`
}

// Peer is a VPN client/device that belongs to exactly one interface.
type Peer struct {
	Identifier          string     `json:"Identifier"`
	DisplayName         string     `json:"DisplayName"`
	UserIdentifier      string     `json:"UserIdentifier"`
	InterfaceIdentifier string     `json:"InterfaceIdentifier"`
	Disabled            bool       `json:"Disabled"`
	DisabledReason      string     `json:"DisabledReason"`
	ExpiresAt           *time.Time `json:"ExpiresAt"`
	Notes               string     `json:"Notes"`

	Endpoint            StringConfigOption      `json:"Endpoint"`
	EndpointPublicKey   StringConfigOption      `json:"EndpointPublicKey"`
	AllowedIPs          StringSliceConfigOption `json:"AllowedIPs"`
	ExtraAllowedIPs     []string                `json:"ExtraAllowedIPs"`
	PresharedKey        string                  `json:"PresharedKey"`
	PersistentKeepalive IntConfigOption         `json:"PersistentKeepalive"`

	PrivateKey string `json:"PrivateKey"`
	PublicKey  string `json:"PublicKey"`

	Mode string `json:"Mode"`

	Addresses         []string                `json:"Addresses"`
	CheckAliveAddress string                  `json:"CheckAliveAddress"`
	Dns               StringSliceConfigOption `json:"Dns"`
	DnsSearch         StringSliceConfigOption `json:"DnsSearch"`
	Mtu               IntConfigOption         `json:"Mtu"`
	FirewallMark      Int32ConfigOption       `json:"FirewallMark"`
	RoutingTable      StringConfigOption      `json:"RoutingTable"`

	PreUp    StringConfigOption `json:"PreUp"`
	PostUp   StringConfigOption `json:"PostUp"`
	PreDown  StringConfigOption `json:"PreDown"`
	PostDown StringConfigOption `json:"PostDown"`
}

// User is a portal account, possibly linked to several peers.
type User struct {
	Identifier   string `json:"Identifier"`
	Email        string `json:"Email"`
	Source       string `json:"Source"`
	ProviderName string `json:"ProviderName"`
	IsAdmin      bool   `json:"IsAdmin"`

	Firstname  string `json:"Firstname"`
	Lastname   string `json:"Lastname"`
	Phone      string `json:"Phone"`
	Department string `json:"Department"`
	Notes      string `json:"Notes"`

	Password       string `json:"Password,omitempty"`
	Disabled       bool   `json:"Disabled"`
	DisabledReason string `json:"DisabledReason"`
	Locked         bool   `json:"Locked"`
	LockedReason   string `json:"LockedReason"`

	ApiToken        string     `json:"ApiToken"`
	ApiTokenCreated *time.Time `json:"ApiTokenCreated,omitempty"`
	ApiEnabled      bool       `json:"ApiEnabled"`

	// Calculated by the backend.
	PeerCount int `json:"PeerCount"`
}

// PeerStatus is the authoritative connectivity snapshot for one peer.
type PeerStatus struct {
	PeerId    string    `json:"PeerId"`
	UpdatedAt time.Time `json:"-"`

	IsConnected bool `json:"IsConnected"`

	IsPingable bool       `json:"IsPingable"`
	LastPing   *time.Time `json:"LastPing"`

	BytesReceived    uint64 `json:"BytesReceived"`
	BytesTransmitted uint64 `json:"BytesTransmitted"`

	LastHandshake    *time.Time `json:"LastHandshake"`
	Endpoint         string     `json:"Endpoint"`
	LastSessionStart *time.Time `json:"LastSessionStart"`
}

// InterfaceStatus is the authoritative traffic snapshot for one interface.
type InterfaceStatus struct {
	InterfaceId string    `json:"InterfaceId"`
	UpdatedAt   time.Time `json:"-"`

	BytesReceived    uint64 `json:"BytesReceived"`
	BytesTransmitted uint64 `json:"BytesTransmitted"`
}

// PeerStats is the wire form of a stats fetch: a snapshot per peer id,
// plus a flag telling whether stats collection is enabled server-side.
type PeerStats struct {
	Enabled bool                  `json:"Enabled"`
	Stats   map[string]PeerStatus `json:"Stats"`
}

// InterfaceStats mirrors PeerStats for interfaces.
type InterfaceStats struct {
	Enabled bool                       `json:"Enabled"`
	Stats   map[string]InterfaceStatus `json:"Stats"`
}

// TrafficDelta is an incremental traffic update pushed over the realtime
// channel. It overlays, never replaces, the authoritative snapshots.
type TrafficDelta struct {
	EntityId         string `json:"EntityId"`
	BytesReceived    uint64 `json:"BytesReceived"`
	BytesTransmitted uint64 `json:"BytesTransmitted"`
}

// AuditEntry is a read-only portal audit record.
type AuditEntry struct {
	Id        uint64 `json:"Id"`
	Timestamp string `json:"Timestamp"`

	ContextUser string `json:"ContextUser"`
	Severity    string `json:"Severity"`
	Origin      string `json:"Origin"`
	Message     string `json:"Message"`
}

// Settings are backend-controlled feature toggles for the client.
type Settings struct {
	MailLinkOnly              bool `json:"MailLinkOnly"`
	PersistentConfigSupported bool `json:"PersistentConfigSupported"`
	SelfProvisioning          bool `json:"SelfProvisioning"`
	ApiAdminOnly              bool `json:"ApiAdminOnly"`
	WebAuthnEnabled           bool `json:"WebAuthnEnabled"`
	MinPasswordLength         int  `json:"MinPasswordLength"`
	LoginFormVisible          bool `json:"LoginFormVisible"`
}
