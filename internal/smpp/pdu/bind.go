package pdu

// ParseBind extracts system_id and password from a bind PDU body. Only the
// two leading C-strings matter for authentication; interface_version and
// the addr_ton/npi/range fields that follow are ignored.
func ParseBind(body []byte) (systemID, password string, err error) {
	systemID, off, err := cString(body, 0)
	if err != nil {
		return "", "", err
	}
	password, _, err = cString(body, off)
	if err != nil {
		return "", "", err
	}
	return systemID, password, nil
}

// BuildBind constructs a bind_transmitter/receiver/transceiver body for
// round-trip tests. Trailing optional fields are omitted.
func BuildBind(systemID, password, systemType string, interfaceVersion, addrTON, addrNPI byte, addrRange string) []byte {
	body := make([]byte, 0, len(systemID)+len(password)+len(systemType)+len(addrRange)+8)
	body = append(body, systemID...)
	body = append(body, 0)
	body = append(body, password...)
	body = append(body, 0)
	body = append(body, systemType...)
	body = append(body, 0)
	body = append(body, interfaceVersion, addrTON, addrNPI)
	body = append(body, addrRange...)
	body = append(body, 0)
	return body
}
