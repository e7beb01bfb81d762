package adv3

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/mod/semver"
)

const cmdMachineInfo = "M115"

type MachineInfo struct {
	Type         string
	Name         string
	Firmware     string
	SerialNumber string
	ToolCount    int
	// Build volume in mm
	X, Y, Z int
}

// MachineInfo queries the printer identification.
func (s *Session) MachineInfo() (MachineInfo, error) {
	reply, err := s.Send(cmdMachineInfo)
	if err != nil {
		return MachineInfo{}, err
	}
	if !IsOK(reply) {
		return MachineInfo{}, &ProtocolError{Cmd: cmdMachineInfo, Reply: reply}
	}
	return parseMachineInfo(reply), nil
}

// parseMachineInfo reads
//
//	CMD M115 Received.
//	Machine Type: FlashForge Adventurer III
//	Machine Name: Adventurer III
//	Firmware: v1.1.7
//	SN: SNADVA9501419
//	X: 150 Y: 150 Z: 150
//	Tool Count: 1
//	ok
func parseMachineInfo(reply string) MachineInfo {
	var mi MachineInfo
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)
		switch key {
		case "Machine Type":
			mi.Type = value
		case "Machine Name":
			mi.Name = value
		case "Firmware":
			mi.Firmware = value
		case "SN":
			mi.SerialNumber = value
		case "Tool Count":
			mi.ToolCount, _ = strconv.Atoi(value)
		case "X":
			f := strings.Fields(line)
			if len(f) == 6 {
				mi.X, _ = strconv.Atoi(f[1])
				mi.Y, _ = strconv.Atoi(f[3])
				mi.Z, _ = strconv.Atoi(f[5])
			}
		}
	}
	return mi
}

// canonicalVersion turns "v1.1.7", "V2.1" or "2.1.0" into semver form.
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimLeft(v, "vV")
	return semver.Canonical("v" + v)
}

func validVersion(v string) bool {
	return canonicalVersion(v) != ""
}

func (s *Session) checkFirmware() error {
	mi, err := s.MachineInfo()
	if err != nil {
		return err
	}
	have := canonicalVersion(mi.Firmware)
	if have == "" {
		return Unrecoverable(fmt.Errorf("unable to parse firmware version %q", mi.Firmware))
	}
	s.log.Infof("printer firmware version: %s", mi.Firmware)
	if semver.Compare(have, canonicalVersion(s.minFirmware)) < 0 {
		return Unrecoverable(fmt.Errorf("firmware %s is required, printer runs %s", s.minFirmware, mi.Firmware))
	}
	return nil
}
