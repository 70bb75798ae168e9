// Package security はアウトバウンド接続のセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// EndpointGuardService はアウトバウンドエンドポイントの保護機能のインターフェース。
// 関数呼び出しエンドポイントとアナリティクスエンドポイントの両方で使用される。
// エージェントは信頼できない環境に配布されるため、設定値として持ち込まれた
// エンドポイントがプライベートネットワークを指していないことを保証する。
type EndpointGuardService interface {
	// NewSafeClient は保護機能付きのHTTPクライアントを生成する。
	// safeurlライブラリにより、プライベートIP、ループバック、リンクローカル、
	// メタデータIPへのリクエストが自動的にブロックされる。
	// DNS再バインディング攻撃への対策も有効化される。
	NewSafeClient(timeout time.Duration) *http.Client

	// ValidateEndpoint はエンドポイントURLの安全性を事前に検証する。
	// スキーム、ホスト、IPアドレスの検証を行い、
	// 危険なURLの場合はエラーを返す。
	ValidateEndpoint(rawURL string) error
}

// allowedSchemes はエンドポイントで許可されるURLスキーム。
// wssはIdPイベントストリームのWebSocket接続用。
var allowedSchemes = []string{"http", "https", "ws", "wss"}

// blockedNetworks はブロックされるネットワーク範囲。
// パッケージ初期化時に1回だけパースし、ValidateEndpointでの検証に使用する。
// safeurlはnet.DialerレベルでDNS解決後のIPアドレスも検証するため、
// DNS再バインディング攻撃にも対応している。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック (RFC 1122)
		"127.0.0.0/8",
		// リンクローカル (RFC 3927) - クラウドメタデータIP (169.254.169.254) を含む
		"169.254.0.0/16",
		// カレントネットワーク
		"0.0.0.0/8",
		// IPv6ループバック
		"::1/128",
		// IPv6リンクローカル
		"fe80::/10",
		// IPv6ユニークローカル
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// endpointGuard はEndpointGuardServiceの実装。
type endpointGuard struct {
	allowedPorts []int
}

// NewEndpointGuard はEndpointGuardServiceの新しいインスタンスを生成する。
// endpointsには設定された送出・呼び出し先のURLを渡す。
// URLに明示されたポートはデフォルトの80/443に加えて許可される。
// ValidateEndpointで受理されたエンドポイントがディスパッチ時に
// ポート制限で拒否されることはない。
func NewEndpointGuard(endpoints ...string) *endpointGuard {
	ports := []int{80, 443}
	seen := map[int]bool{80: true, 443: true}

	for _, endpoint := range endpoints {
		if endpoint == "" {
			continue
		}
		parsed, err := url.Parse(endpoint)
		if err != nil {
			continue
		}
		port, err := strconv.Atoi(parsed.Port())
		if err != nil || seen[port] {
			continue
		}
		ports = append(ports, port)
		seen[port] = true
	}

	return &endpointGuard{allowedPorts: ports}
}

// NewSafeClient は保護機能付きのHTTPクライアントを生成する。
// safeurlのデフォルト設定により以下がブロックされる:
//   - プライベートIPアドレス (10.0.0.0/8, 172.16.0.0/12, 192.168.0.0/16)
//   - ループバックアドレス (127.0.0.0/8, ::1)
//   - リンクローカルアドレス (169.254.0.0/16, fe80::/10)
//   - メタデータIPアドレス (169.254.169.254)
//
// safeurlはnet.DialerのControlフックでDNS解決後のIPアドレスを検証するため、
// DNS再バインディング攻撃にも対応している。
func (g *endpointGuard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(g.allowedPorts...).
		Build()

	wrappedClient := safeurl.Client(config)
	return wrappedClient.Client
}

// ValidateEndpoint はエンドポイントURLの安全性を事前に検証する。
// DNS解決を伴わない静的な検証を行う。
// 起動時の設定検証として使用する。
// 注意: この検証はDNS解決前の静的チェックであるため、DNS再バインディング攻撃は
// NewSafeClientが生成するHTTPクライアント側のDialer検証で防止される。
func (g *endpointGuard) ValidateEndpoint(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty endpoint URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}

	// スキーム検証
	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s (allowed: %v)", scheme, allowedSchemes)
	}

	// ホスト検証: 空ホストを拒否
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in endpoint URL: %s", rawURL)
	}

	// IPアドレスの場合: ブロック対象CIDRとの照合
	ip := net.ParseIP(host)
	if ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	// ホスト名の場合: localhost等の危険なホスト名を拒否
	if isBlockedHostname(host) {
		return fmt.Errorf("blocked host: %s", host)
	}

	return nil
}

// isAllowedScheme はURLスキームが許可リストに含まれるかを検証する。
func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

// isBlockedIP はIPアドレスがブロック対象のネットワーク範囲に含まれるかを検証する。
func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// blockedHostnames はブロック対象のホスト名。
var blockedHostnames = []string{
	"localhost",
}

// isBlockedHostname はホスト名がブロック対象かを検証する。
func isBlockedHostname(host string) bool {
	lower := strings.ToLower(host)
	for _, blocked := range blockedHostnames {
		if lower == blocked {
			return true
		}
	}
	return false
}

// permissiveGuard は検証を行わないEndpointGuardServiceの実装。
// ALLOW_PRIVATE_ENDPOINTS設定時のローカル開発用。
type permissiveGuard struct{}

// NewPermissiveGuard は検証を行わないガードを生成する。
// すべてのエンドポイントを許可し、通常のHTTPクライアントを返す。
func NewPermissiveGuard() *permissiveGuard {
	return &permissiveGuard{}
}

// NewSafeClient は通常のHTTPクライアントを返す。
func (g *permissiveGuard) NewSafeClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// ValidateEndpoint は常に成功する。
func (g *permissiveGuard) ValidateEndpoint(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty endpoint URL")
	}
	if _, err := url.Parse(rawURL); err != nil {
		return fmt.Errorf("invalid endpoint URL: %w", err)
	}
	return nil
}
