//go:build ignore

package main

import (
	"encoding/binary"
	"fmt"
	"os"

	"RedScrip/internal/storage"
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <db_path>\n", os.Args[0])
		os.Exit(1)
	}

	db, err := storage.New(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	dumpCertificates(db)
	dumpDelegates(db)
	dumpCondensers(db)
	dumpClaims(db)
	dumpBalances(db)
	dumpNonce(db)
}

// dumpCertificates prints every certificate type record ("t:" + 32-byte ID).
func dumpCertificates(db *storage.Storage) {
	fmt.Println("certificate types:")

	count := 0
	db.IteratePrefix([]byte("t:"), func(key, value []byte) error {
		if len(key) != 2+32 || len(value) < 8 {
			fmt.Printf("  malformed record key=%x\n", key)
			return nil
		}

		amount := binary.LittleEndian.Uint64(value[:8])
		fmt.Printf("  %x amount=%d metadata=%q\n", key[2:], amount, string(value[8:]))
		count++

		return nil
	})

	fmt.Printf("  total: %d\n\n", count)
}

// dumpDelegates prints delegate markers ("d:" + 32-byte ID + 20-byte address).
func dumpDelegates(db *storage.Storage) {
	fmt.Println("delegates:")

	count := 0
	db.IteratePrefix([]byte("d:"), func(key, value []byte) error {
		if len(key) != 2+32+20 {
			fmt.Printf("  malformed marker key=%x\n", key)
			return nil
		}

		fmt.Printf("  type=%x delegate=%x\n", key[2:34], key[34:])
		count++

		return nil
	})

	fmt.Printf("  total: %d\n\n", count)
}

// dumpCondensers prints condenser markers ("k:" + 20-byte address).
func dumpCondensers(db *storage.Storage) {
	fmt.Println("condensers:")

	count := 0
	db.IteratePrefix([]byte("k:"), func(key, value []byte) error {
		if len(key) != 2+20 {
			fmt.Printf("  malformed marker key=%x\n", key)
			return nil
		}

		fmt.Printf("  %x\n", key[2:])
		count++

		return nil
	})

	fmt.Printf("  total: %d\n\n", count)
}

// dumpClaims prints claim markers ("c:" + 32-byte ID + 20-byte holder).
func dumpClaims(db *storage.Storage) {
	fmt.Println("claims:")

	count := 0
	db.IteratePrefix([]byte("c:"), func(key, value []byte) error {
		if len(key) != 2+32+20 {
			fmt.Printf("  malformed marker key=%x\n", key)
			return nil
		}

		fmt.Printf("  type=%x holder=%x\n", key[2:34], key[34:])
		count++

		return nil
	})

	fmt.Printf("  total: %d\n\n", count)
}

// dumpBalances prints holder balances ("b:" + 20-byte address).
func dumpBalances(db *storage.Storage) {
	fmt.Println("balances:")

	var total uint64
	count := 0
	db.IteratePrefix([]byte("b:"), func(key, value []byte) error {
		if len(key) != 2+20 || len(value) != 8 {
			fmt.Printf("  malformed balance key=%x\n", key)
			return nil
		}

		balance := binary.LittleEndian.Uint64(value)
		fmt.Printf("  %x balance=%d\n", key[2:], balance)
		total += balance
		count++

		return nil
	})

	fmt.Printf("  total: %d holders, %d credited\n\n", count, total)
}

// dumpNonce prints the last accepted admin nonce.
func dumpNonce(db *storage.Storage) {
	data, err := db.Get([]byte("n:admin"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "read nonce: %v\n", err)
		return
	}

	if data == nil {
		fmt.Println("admin nonce: unset")
		return
	}

	if len(data) != 8 {
		fmt.Printf("admin nonce: malformed (%d bytes)\n", len(data))
		return
	}

	fmt.Printf("admin nonce: %d\n", binary.LittleEndian.Uint64(data))
}
