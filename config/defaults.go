package config

import "strings"

// Keys of the configuration
const (
	BootFeature        = "BOOT_FEATURE"
	Hostname           = "HOSTNAME"
	FloppiesFolder     = "FLOPPIES_FOLDER"
	FloppyImageA       = "FLOPPY_IMAGE_A"
	FloppyImageB       = "FLOPPY_IMAGE_B"
	FloppyBootEnabled  = "FLOPPY_BOOT_ENABLED"
	FloppyXBIOSEnabled = "FLOPPY_XBIOS_ENABLED"
	FloppyBufferType   = "FLOPPY_BUFFER_TYPE"
	RomsFolder         = "ROMS_FOLDER"
	RomsYAMLURL        = "ROMS_YAML_URL"
	RTCType            = "RTC_TYPE"
	RTCNTPServerHost   = "RTC_NTP_SERVER_HOST"
	RTCNTPServerPort   = "RTC_NTP_SERVER_PORT"
	RTCUTCOffset       = "RTC_UTC_OFFSET"
	RTCY2KPatch        = "RTC_Y2K_PATCH"
	GemdriveFolders    = "GEMDRIVE_FOLDERS"
	GemdriveDrive      = "GEMDRIVE_DRIVE"
	GemdriveBuffType   = "GEMDRIVE_BUFF_TYPE"
	GemdriveRTC        = "GEMDRIVE_RTC"
	GemdriveTimeoutSec = "GEMDRIVE_TIMEOUT_SEC"
	GemdriveFakeFloppy = "GEMDRIVE_FAKEFLOPPY"
	SafeConfigReboot   = "SAFE_CONFIG_REBOOT"
	WifiSSID           = "WIFI_SSID"
	WifiPassword       = "WIFI_PASSWORD"
	WifiAuth           = "WIFI_AUTH"
)

// Defaults holds every known key. Entries read from flash with other keys
// are dropped.
var Defaults = []Entry{
	{BootFeature, String, "CONFIGURATOR"},
	{Hostname, String, "sidecart"},
	{FloppiesFolder, String, "/floppies"},
	{FloppyImageA, String, ""},
	{FloppyImageB, String, ""},
	{FloppyBootEnabled, Bool, "true"},
	{FloppyXBIOSEnabled, Bool, "true"},
	{FloppyBufferType, Int, "0"},
	{RomsFolder, String, "/roms"},
	{RomsYAMLURL, String, "http://roms.sidecartridge.com/roms.json"},
	{RTCType, String, "SIDECART"},
	{RTCNTPServerHost, String, "pool.ntp.org"},
	{RTCNTPServerPort, Int, "123"},
	{RTCUTCOffset, Int, "0"},
	{RTCY2KPatch, Bool, "true"},
	{GemdriveFolders, String, "/hd"},
	{GemdriveDrive, String, "C"},
	{GemdriveBuffType, Int, "0"},
	{GemdriveRTC, Bool, "true"},
	{GemdriveTimeoutSec, Int, "45"},
	{GemdriveFakeFloppy, Bool, "false"},
	{SafeConfigReboot, Bool, "true"},
	{WifiSSID, String, ""},
	{WifiPassword, String, ""},
	{WifiAuth, Int, "0"},
}

// movedDomains maps retired host names to their replacement.
var movedDomains = strings.NewReplacer(
	".sidecart.xyz", ".sidecartridge.com",
)

// migrate rewrites values pointing to retired servers.
func (s *Store) migrate() {
	for i := range s.entries {
		e := &s.entries[i]
		if e.Type == String {
			e.Value = movedDomains.Replace(e.Value)
		}
	}
}
