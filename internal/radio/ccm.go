package radio

import (
	"crypto/aes"
	"encoding/binary"
	"fmt"
)

// SessionKey computes the BLE session key E(LTK, SKDm || SKDs): a single
// AES-128-ECB encryption of the 16-byte input formed
// by SKDm concatenated with SKDs, under the 16-byte LTK. No ecosystem
// library in this module's dependency pack implements AES-CCM in the BLE
// nonce/additional-data layout, so the block cipher primitive comes from
// the standard library (crypto/aes) and the CCM framing below is written
// out explicitly, grounded on the Core spec's encryption procedure text
// rather than any one example repo.
func SessionKey(ltk [16]byte, skdm, skds uint64) ([16]byte, error) {
	var input [16]byte
	binary.BigEndian.PutUint64(input[0:8], skdm)
	binary.BigEndian.PutUint64(input[8:16], skds)

	block, err := aes.NewCipher(ltk[:])
	if err != nil {
		return [16]byte{}, err
	}
	var out [16]byte
	block.Encrypt(out[:], input[:])
	return out, nil
}

// ccmNonce builds the 13-byte CCM nonce: packet counter (39 bits, little
// endian) || direction bit (MSB of byte 4) || IV (8 bytes), exactly as laid
// out by the Core spec's encryption annex.
func ccmNonce(ctx *CCMContext) [13]byte {
	var nonce [13]byte
	var ctr [5]byte
	ctr[0] = byte(ctx.Counter)
	ctr[1] = byte(ctx.Counter >> 8)
	ctr[2] = byte(ctx.Counter >> 16)
	ctr[3] = byte(ctx.Counter >> 24)
	ctr[4] = byte(ctx.Counter >> 32 & 0x7F)
	if ctx.Direction == DirMasterToSlave {
		ctr[4] |= 0x80
	}
	copy(nonce[0:5], ctr[:])
	copy(nonce[5:13], ctx.IV[:])
	return nonce
}

// Seal encrypts plaintext with BLE's CCM parameters (4-byte MIC, single
// byte of additional authenticated data taken from the PDU header's LLID
// bits, with NESN/SN/MD and length masked out) and returns ciphertext||MIC
// in a newly allocated slice, leaving plaintext untouched.
// It does not advance ctx.Counter; callers advance it exactly once per
// successful radio_ccm_is_done, matching the ISR's "increment the RX/TX CCM
// counter" step here.
func Seal(ctx *CCMContext, headerByte byte, plaintext []byte) ([]byte, error) {
	aead, err := newCCM(ctx.Key)
	if err != nil {
		return nil, err
	}
	nonce := ccmNonce(ctx)
	aad := []byte{headerByte & 0x03}
	return aead.Seal(nil, nonce[:], plaintext, aad), nil
}

// Open decrypts and authenticates a CCM-protected payload; ok is false
// (rather than an error) when the MIC fails to validate, matching
// radio_ccm_mic_is_valid's boolean shape so the ISR can treat a bad MIC as
// the "terminate with reason MIC failure" path rather than a Go error.
func Open(ctx *CCMContext, headerByte byte, ciphertext []byte) (plaintext []byte, ok bool, err error) {
	aead, err := newCCM(ctx.Key)
	if err != nil {
		return nil, false, err
	}
	nonce := ccmNonce(ctx)
	aad := []byte{headerByte & 0x03}
	pt, err := aead.Open(nil, nonce[:], ciphertext, aad)
	if err != nil {
		return nil, false, nil
	}
	return pt, true, nil
}

// newCCM returns a minimal AES-CCM sealer/opener using a 13-byte nonce
// and 4-byte MIC per the Bluetooth LE air-interface profile of CCM (RFC
// 3610 mode, M=4, L=2).
func newCCM(key [16]byte) (*ccmCipher, error) {
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	return &ccmCipher{block: block}, nil
}

type ccmCipher struct {
	block interface {
		Encrypt(dst, src []byte)
	}
}

const (
	ccmMICSize = 4
	ccmL       = 2 // length field size, bytes
)

func (c *ccmCipher) Seal(dst, nonce, plaintext, aad []byte) []byte {
	tag := c.mac(nonce, plaintext, aad)
	ct := c.ctrCrypt(nonce, plaintext)
	encTag := c.ctrCryptBlock(nonce, 0, tag[:])
	out := append(dst, ct...)
	out = append(out, encTag[:ccmMICSize]...)
	return out
}

func (c *ccmCipher) Open(dst, nonce, ciphertext, aad []byte) ([]byte, error) {
	if len(ciphertext) < ccmMICSize {
		return nil, fmt.Errorf("radio: ccm ciphertext too short")
	}
	ct := ciphertext[:len(ciphertext)-ccmMICSize]
	gotTag := ciphertext[len(ciphertext)-ccmMICSize:]

	pt := c.ctrCrypt(nonce, ct)
	wantTag := c.mac(nonce, pt, aad)
	encWantTag := c.ctrCryptBlock(nonce, 0, wantTag[:])

	var diff byte
	for i := 0; i < ccmMICSize; i++ {
		diff |= encWantTag[i] ^ gotTag[i]
	}
	if diff != 0 {
		return nil, fmt.Errorf("radio: ccm mic mismatch")
	}
	return append(dst, pt...), nil
}

// ctrCrypt runs CTR-mode encryption/decryption starting at counter block 1
// (block 0 is reserved for the MIC, per CCM).
func (c *ccmCipher) ctrCrypt(nonce, in []byte) []byte {
	out := make([]byte, len(in))
	for off := 0; off < len(in); off += 16 {
		blk := c.ctrBlock(nonce, uint16(off/16)+1)
		end := off + 16
		if end > len(in) {
			end = len(in)
		}
		for i := off; i < end; i++ {
			out[i] = in[i] ^ blk[i-off]
		}
	}
	return out
}

func (c *ccmCipher) ctrCryptBlock(nonce []byte, counter uint16, in []byte) []byte {
	blk := c.ctrBlock(nonce, counter)
	out := make([]byte, len(in))
	for i := range in {
		out[i] = in[i] ^ blk[i]
	}
	return out
}

func (c *ccmCipher) ctrBlock(nonce []byte, counter uint16) [16]byte {
	var a [16]byte
	a[0] = byte(ccmL - 1)
	copy(a[1:14], nonce)
	binary.BigEndian.PutUint16(a[14:16], counter)
	var out [16]byte
	c.block.Encrypt(out[:], a[:])
	return out
}

// mac computes the CBC-MAC over the length-prefixed AAD and the message,
// per the CCM authentication pass, using the B0 flags byte for (AAD
// present, M, L) and zero-padding the final block.
func (c *ccmCipher) mac(nonce, msg, aad []byte) [16]byte {
	var b0 [16]byte
	flags := byte(0)
	if len(aad) > 0 {
		flags |= 0x40
	}
	flags |= byte((ccmMICSize-2)/2) << 3
	flags |= byte(ccmL - 1)
	b0[0] = flags
	copy(b0[1:14], nonce)
	binary.BigEndian.PutUint16(b0[14:16], uint16(len(msg)))

	var mac [16]byte
	c.block.Encrypt(mac[:], b0[:])

	blocks := encodeAAD(aad)
	blocks = append(blocks, msg...)
	for off := 0; off < len(blocks); off += 16 {
		var blk [16]byte
		end := off + 16
		if end > len(blocks) {
			end = len(blocks)
		}
		copy(blk[:], blocks[off:end])
		for i := range mac {
			mac[i] ^= blk[i]
		}
		c.block.Encrypt(mac[:], mac[:])
	}
	return mac
}

// encodeAAD prepends the 2-byte big-endian AAD length and pads to a 16-byte
// boundary, per CCM's associated-data encoding.
func encodeAAD(aad []byte) []byte {
	if len(aad) == 0 {
		return nil
	}
	out := make([]byte, 2+len(aad))
	binary.BigEndian.PutUint16(out[0:2], uint16(len(aad)))
	copy(out[2:], aad)
	if rem := len(out) % 16; rem != 0 {
		out = append(out, make([]byte, 16-rem)...)
	}
	return out
}
