package main

import (
	"fmt"

	"github.com/jochenvg/go-udev"
)

// discoverTTY finds a tty device node matching the given USB vendor/product
// ID pair via udev, so the daemon can find the modem without a hardcoded
// /dev/ttyUSBn path surviving a reboot or a re-enumeration. Either id may be
// empty to skip that match.
func discoverTTY(vendorID, productID string) (string, error) {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("tty"); err != nil {
		return "", err
	}
	if vendorID != "" {
		if err := e.AddMatchProperty("ID_VENDOR_ID", vendorID); err != nil {
			return "", err
		}
	}
	if productID != "" {
		if err := e.AddMatchProperty("ID_MODEL_ID", productID); err != nil {
			return "", err
		}
	}
	devices, err := e.Devices()
	if err != nil {
		return "", err
	}
	for _, d := range devices {
		if node := d.Devnode(); node != "" {
			return node, nil
		}
	}
	return "", fmt.Errorf("no tty device found for vendor=%q product=%q", vendorID, productID)
}
