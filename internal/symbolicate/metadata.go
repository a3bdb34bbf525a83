package symbolicate

import (
	"regexp"
	"strings"
)

var (
	appVersionRE = regexp.MustCompile(`^Version:\s+(?P<build>\d+)\s+\((?P<version>[\d.]+)\)`)
	osVersionRE  = regexp.MustCompile(`^OS Version:\s+(?P<type>\w+)\s+(?P<version>[\d.]+)\s+\((?P<build>[^)]+)\)`)
	codeTypeRE   = regexp.MustCompile(`^Code Type:\s+(?P<arch>[A-Za-z0-9\-]+)`)
)

// Apple crash report code types to the architecture names used in the database.
var codeTypes = map[string]string{
	"arm-64": "arm64e",
	"arm64":  "arm64",
	"x86-64": "x86_64",
}

// Metadata is what a crash report header says about where it came from.
type Metadata struct {
	OSType     string
	OSVersion  string
	OSBuild    string
	Arch       string
	AppBuild   string
	AppVersion string
}

// ParseMetadata reads the Version, OS Version and Code Type header lines.
func ParseMetadata(text string) Metadata {
	var m Metadata
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "Version:"):
			if match := appVersionRE.FindStringSubmatch(line); match != nil {
				m.AppBuild = match[appVersionRE.SubexpIndex("build")]
				m.AppVersion = match[appVersionRE.SubexpIndex("version")]
			}
		case strings.HasPrefix(line, "OS Version:"):
			if match := osVersionRE.FindStringSubmatch(line); match != nil {
				m.OSType = match[osVersionRE.SubexpIndex("type")]
				m.OSVersion = match[osVersionRE.SubexpIndex("version")]
				m.OSBuild = match[osVersionRE.SubexpIndex("build")]
			}
		case strings.HasPrefix(line, "Code Type:"):
			if match := codeTypeRE.FindStringSubmatch(line); match != nil {
				arch := strings.ToLower(match[codeTypeRE.SubexpIndex("arch")])
				if mapped, ok := codeTypes[arch]; ok {
					arch = mapped
				}
				m.Arch = arch
			}
		}
	}
	return m
}
