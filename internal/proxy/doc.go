// Package proxy turns user supplied proxy addresses into HTTP clients.
//
// Every crawl run picks one proxy with Choose and routes all of its traffic
// through a single Client built by NewClient. HTTP and HTTPS proxies are
// handled by net/http; SOCKS5 proxies go through golang.org/x/net/proxy.
// EmbeddedTor can start a private Tor daemon whose SOCKS port is then used
// as the proxy.
package proxy
