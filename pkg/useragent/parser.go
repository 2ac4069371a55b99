package useragent

import (
	"fmt"
	"os"
	"strings"

	"github.com/ua-parser/uap-go/uaparser"
	"go.uber.org/zap"
)

// Device classes reported in analytics breakdowns.
const (
	DeviceMobile  = "Mobile"
	DeviceTablet  = "Tablet"
	DeviceDesktop = "Desktop"
	DeviceBot     = "Bot"
)

// Parser wraps the User-Agent parser with device class detection.
type Parser struct {
	parser *uaparser.Parser
	log    *zap.Logger
}

// DeviceInfo represents parsed device information.
type DeviceInfo struct {
	Device  string // Mobile, Tablet, Desktop, Bot
	OS      string // Windows, iOS, Android, ...
	Browser string // Chrome, Firefox, Safari, ...
}

// NewParser creates a User-Agent parser. When regexesPath names a readable
// uap-core regexes.yaml it is used; otherwise the definitions compiled into
// uap-go serve as the fallback.
func NewParser(regexesPath string, log *zap.Logger) (*Parser, error) {
	if regexesPath != "" {
		data, err := os.ReadFile(regexesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read regexes file %s: %w", regexesPath, err)
		}
		p, err := uaparser.NewFromBytes(data)
		if err != nil {
			return nil, fmt.Errorf("failed to create User-Agent parser: %w", err)
		}
		log.Info("User-Agent parser initialized", zap.String("regexes_file", regexesPath))
		return &Parser{parser: p, log: log}, nil
	}

	log.Info("User-Agent parser initialized with built-in definitions")
	return &Parser{parser: uaparser.NewFromSaved(), log: log}, nil
}

// Parse classifies a raw User-Agent string.
func (p *Parser) Parse(userAgent string) DeviceInfo {
	if userAgent == "" {
		return DeviceInfo{Device: DeviceDesktop, OS: "Unknown", Browser: "Unknown"}
	}

	client := p.parser.Parse(userAgent)

	info := DeviceInfo{
		OS:      familyOrUnknown(client.Os.Family),
		Browser: familyOrUnknown(client.UserAgent.Family),
	}
	info.Device = classify(client, userAgent)

	return info
}

func classify(client *uaparser.Client, userAgent string) string {
	if isBot(client.UserAgent.Family, userAgent) {
		return DeviceBot
	}

	os := client.Os.Family
	device := client.Device.Family

	switch {
	case containsAny(device, "iPad", "Tablet", "Kindle", "Surface"):
		return DeviceTablet
	case containsAny(device, "iPhone", "Phone", "Mobile"):
		return DeviceMobile
	}

	// OS-level fallback when the device family is generic ("Other").
	if containsAny(os, "iOS", "Android", "Windows Phone", "BlackBerry", "Firefox OS") {
		// iPads report iOS; Android tablets drop "Mobile" from the UA string.
		if strings.Contains(userAgent, "iPad") {
			return DeviceTablet
		}
		if strings.Contains(os, "Android") && !strings.Contains(userAgent, "Mobile") {
			return DeviceTablet
		}
		return DeviceMobile
	}

	return DeviceDesktop
}

func isBot(uaFamily, userAgent string) bool {
	indicators := []string{
		"bot", "crawler", "spider", "scraper", "slurp",
		"facebookexternalhit", "whatsapp", "telegram", "skypeuripreview",
	}
	for _, s := range indicators {
		if strings.Contains(strings.ToLower(uaFamily), s) || strings.Contains(strings.ToLower(userAgent), s) {
			return true
		}
	}
	return false
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func familyOrUnknown(family string) string {
	if family == "" || family == "Other" {
		return "Unknown"
	}
	return family
}
