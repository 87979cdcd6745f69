package adapters

import (
	"bufio"
	"fmt"
	"strings"

	domainErrors "ifsync/internal/domain/errors"
	"ifsync/internal/domain/interfaces"
)

// RealOSDetector detects the distribution family from an os-release file
type RealOSDetector struct {
	fileSystem  interfaces.FileSystem
	releaseFile string
}

// NewRealOSDetector reads releaseFile, usually /host/etc/os-release inside a
// container or <root>/etc/os-release otherwise
func NewRealOSDetector(fs interfaces.FileSystem, releaseFile string) interfaces.OSDetector {
	return &RealOSDetector{
		fileSystem:  fs,
		releaseFile: releaseFile,
	}
}

// DetectOS returns the distribution family
func (d *RealOSDetector) DetectOS() (interfaces.OSType, error) {
	releaseInfo, err := d.parseOSRelease()
	if err != nil {
		return "", domainErrors.NewFileError("OS detection failed: cannot read "+d.releaseFile, err)
	}

	id, ok := releaseInfo["ID"]
	if !ok {
		return "", domainErrors.NewOtherError("OS detection failed: no ID field in "+d.releaseFile, nil)
	}

	idLike := releaseInfo["ID_LIKE"]

	switch {
	case id == "ubuntu" || id == "debian" || strings.Contains(idLike, "ubuntu"):
		return interfaces.OSTypeUbuntu, nil
	case id == "rhel" || id == "centos" || id == "rocky" || id == "almalinux" || id == "ol" ||
		id == "fedora" || strings.Contains(idLike, "rhel") || strings.Contains(idLike, "fedora"):
		return interfaces.OSTypeRHEL, nil
	case id == "sles" || strings.HasPrefix(id, "opensuse") || strings.Contains(idLike, "suse"):
		return interfaces.OSTypeSUSE, nil
	}

	return "", domainErrors.NewOtherError(fmt.Sprintf("unsupported OS type. ID: '%s', ID_LIKE: '%s'", id, idLike), nil)
}

func (d *RealOSDetector) parseOSRelease() (map[string]string, error) {
	content, err := d.fileSystem.ReadFile(d.releaseFile)
	if err != nil {
		return nil, err
	}

	releaseInfo := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			key := strings.TrimSpace(parts[0])
			value := strings.Trim(strings.TrimSpace(parts[1]), "\"")
			releaseInfo[key] = value
		}
	}

	return releaseInfo, scanner.Err()
}
