package mavlink

const crcInit = 0xffff

// crcAccumulate folds one byte into a CRC-16/MCRF4XX checksum.
func crcAccumulate(crc uint16, b byte) uint16 {
	tmp := b ^ byte(crc&0xff)
	tmp ^= tmp << 4
	return (crc >> 8) ^ (uint16(tmp) << 8) ^ (uint16(tmp) << 3) ^ (uint16(tmp) >> 4)
}

func crcBytes(crc uint16, data []byte) uint16 {
	for _, b := range data {
		crc = crcAccumulate(crc, b)
	}
	return crc
}
