package sia

import "github.com/sigurn/crc16"

// DC-09 frames carry a CRC-16/ARC checksum (poly 0x8005 reflected, init 0)
// computed over the bytes from the opening protocol quote up to, but not
// including, the trailing carriage return.
var crcTable = crc16.MakeTable(crc16.CRC16_ARC)

func Checksum(data []byte) uint16 {
	return crc16.Checksum(data, crcTable)
}
