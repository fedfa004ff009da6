package chain

import "testing"

func TestChecksumAddress(t *testing.T) {
	cases := map[string]string{
		"0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed": "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed",
		"0xFB6916095CA1DF60BB79CE92CE3EA74C37C5D359": "0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359",
		" 0xdbf03b407c01e7cd3cbea99509d93f8dddc8c6fb": "0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB",
	}

	for input, want := range cases {
		got, err := ChecksumAddress(input)
		if err != nil {
			t.Fatalf("checksum %q: %v", input, err)
		}
		if got.Hex() != want {
			t.Fatalf("checksum %q: got %s want %s", input, got.Hex(), want)
		}
	}
}

func TestChecksumAddressIdempotent(t *testing.T) {
	first, err := ChecksumAddress("0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, err := ChecksumAddress(first.Hex())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Hex() != second.Hex() {
		t.Fatalf("not idempotent: %s != %s", first.Hex(), second.Hex())
	}
}

func TestChecksumAddressInvalid(t *testing.T) {
	inputs := []string{
		"",
		"0x1234",
		"0xZZZZb6053f3e94c9b9a09f33669435e7ef1beaed",
		"not-an-address",
	}
	for _, input := range inputs {
		if _, err := ChecksumAddress(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}
