// Package tlsutil centralizes hardened TLS settings for every outbound
// connection the toolkit makes: the tracker HTTP client and optional
// TLS-enabled Redis sinks. TLS 1.2 minimum, AEAD cipher suites only.
package tlsutil
