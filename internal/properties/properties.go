package properties

import "os"

// RootPath is the base directory for default ancillary data (downloaded TEC
// files, burst databases) when the runconfig does not override it.
func RootPath() string {
	return os.Getenv("CSLC_ROOT_PATH")
}

// EngineBin returns the geometry engine command line tool. Falls back to
// looking `isce3-burst` up on PATH.
func EngineBin() string {
	if bin := os.Getenv("CSLC_ENGINE_BIN"); bin != "" {
		return bin
	}
	return "isce3-burst"
}

func DiscordErrorNotificationUrl() string {
	return os.Getenv("DISCORD_ERROR_NOTIFICATION_URL")
}
func DiscordSuccessNotificationUrl() string {
	return os.Getenv("DISCORD_SUCCESS_NOTIFICATION_URL")
}

// TEC archive access for ionosphere correction inputs.
func TecArchiveUrl() string {
	return os.Getenv("CSLC_TEC_ARCHIVE_URL")
}
func TecTokenUrl() string {
	return os.Getenv("CSLC_TEC_TOKEN_URL")
}
func TecClientId() string {
	return os.Getenv("CSLC_TEC_CLIENT_ID")
}
func TecClientSecret() string {
	return os.Getenv("CSLC_TEC_CLIENT_SECRET")
}
