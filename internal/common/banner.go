package common

import (
	"github.com/ternarybob/banner"
)

// AppName is the name shown in the banner and reports
const AppName = "Storefront E2E"

// PrintBanner displays the application banner
func PrintBanner(version string) {
	banner.Print(AppName, version)
}
