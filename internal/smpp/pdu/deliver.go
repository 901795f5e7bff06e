package pdu

// BuildDeliverSM constructs a deliver_sm body carrying a delivery receipt.
// esm_class 0x04 marks it as an SMSC delivery receipt rather than a normal
// mobile-terminated message.
func BuildDeliverSM(source, destination string, text []byte) []byte {
	const (
		escDeliveryReceipt = 0x04
		ton                = 1
		npi                = 1
		registeredDelivery = 1
		dataCoding         = 0
	)

	body := make([]byte, 0, 32+len(text))
	body = append(body, 0) // service_type
	body = append(body, ton, npi)
	body = append(body, source...)
	body = append(body, 0)
	body = append(body, ton, npi)
	body = append(body, destination...)
	body = append(body, 0)
	body = append(body, escDeliveryReceipt, 0, 0) // esm_class, protocol_id, priority_flag
	body = append(body, 0)                        // schedule_delivery_time
	body = append(body, 0)                        // validity_period
	body = append(body, registeredDelivery, 0, dataCoding, 0)
	body = append(body, byte(len(text)))
	body = append(body, text...)
	return body
}
