// Package persistenceTest holds the behaviour every IClientPersistence
// implementation must share.
package persistenceTest

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/Layr-Labs/tezos-client-go/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store. The suite closes it.
type Factory func(t *testing.T) persistence.IClientPersistence

func keyEntry(address string) *persistence.KeyEntry {
	return &persistence.KeyEntry{
		ID:        "id-" + address,
		Address:   address,
		Curve:     "ed25519",
		PublicKey: "edpk-" + address,
		Crypto: persistence.EncryptedKey{
			Cipher:     "aes-128-ctr",
			CipherText: "aa",
			IV:         "bb",
			KDF:        "scrypt",
			ScryptN:    1024,
			ScryptR:    8,
			ScryptP:    1,
			DKLen:      32,
			Salt:       "cc",
			MAC:        "dd",
		},
		CreatedAt: 100,
	}
}

func submission(id string, created int64) *persistence.SubmissionRecord {
	return &persistence.SubmissionRecord{
		ID:        id,
		Source:    "tz1av5nBB8Jp6VZZDBdmGifRcETaYc7UkEnU",
		State:     "injected",
		Kinds:     []string{"transaction"},
		Counter:   42,
		TotalFee:  1500,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

// Run exercises the common contract against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("KeyEntrySaveLoad", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		entry := keyEntry("tz1a")
		require.NoError(t, s.SaveKeyEntry(entry))

		loaded, err := s.LoadKeyEntry("tz1a")
		require.NoError(t, err)
		assert.Equal(t, entry, loaded)

		missing, err := s.LoadKeyEntry("tz1missing")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("KeyEntryOverwrite", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		entry := keyEntry("tz1a")
		require.NoError(t, s.SaveKeyEntry(entry))
		entry.Label = "renamed"
		require.NoError(t, s.SaveKeyEntry(entry))

		loaded, err := s.LoadKeyEntry("tz1a")
		require.NoError(t, err)
		assert.Equal(t, "renamed", loaded.Label)

		entries, err := s.ListKeyEntries()
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("KeyEntryInvalid", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		err := s.SaveKeyEntry(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nil KeyEntry")
		assert.Error(t, s.SaveKeyEntry(&persistence.KeyEntry{}))
	})

	t.Run("KeyEntryListSorted", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		empty, err := s.ListKeyEntries()
		require.NoError(t, err)
		assert.Empty(t, empty)

		for _, addr := range []string{"tz1c", "tz1a", "tz1b"} {
			require.NoError(t, s.SaveKeyEntry(keyEntry(addr)))
		}
		entries, err := s.ListKeyEntries()
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, "tz1a", entries[0].Address)
		assert.Equal(t, "tz1b", entries[1].Address)
		assert.Equal(t, "tz1c", entries[2].Address)
	})

	t.Run("KeyEntryDeleteIdempotent", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		require.NoError(t, s.SaveKeyEntry(keyEntry("tz1a")))
		require.NoError(t, s.DeleteKeyEntry("tz1a"))
		require.NoError(t, s.DeleteKeyEntry("tz1a"))

		loaded, err := s.LoadKeyEntry("tz1a")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		entries, err := s.ListKeyEntries()
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("SubmissionSaveLoadUpdate", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		record := submission("sub-1", 10)
		require.NoError(t, s.SaveSubmission(record))

		record.State = "confirmed"
		record.OperationHash = "ooHash"
		record.Polls = 3
		require.NoError(t, s.SaveSubmission(record))

		loaded, err := s.LoadSubmission("sub-1")
		require.NoError(t, err)
		assert.Equal(t, record, loaded)

		missing, err := s.LoadSubmission("nope")
		require.NoError(t, err)
		assert.Nil(t, missing)

		err = s.SaveSubmission(nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "nil SubmissionRecord")
	})

	t.Run("SubmissionListOrdered", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		require.NoError(t, s.SaveSubmission(submission("late", 30)))
		require.NoError(t, s.SaveSubmission(submission("early", 10)))
		require.NoError(t, s.SaveSubmission(submission("middle", 20)))

		records, err := s.ListSubmissions()
		require.NoError(t, err)
		require.Len(t, records, 3)
		assert.Equal(t, "early", records[0].ID)
		assert.Equal(t, "middle", records[1].ID)
		assert.Equal(t, "late", records[2].ID)

		require.NoError(t, s.DeleteSubmission("middle"))
		require.NoError(t, s.DeleteSubmission("middle"))
		records, err = s.ListSubmissions()
		require.NoError(t, err)
		assert.Len(t, records, 2)
	})

	t.Run("DeepCopy", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		record := submission("copy", 1)
		require.NoError(t, s.SaveSubmission(record))
		record.Kinds[0] = "mutated"

		loaded, err := s.LoadSubmission("copy")
		require.NoError(t, err)
		assert.Equal(t, "transaction", loaded.Kinds[0])

		loaded.Kinds[0] = "mutated again"
		again, err := s.LoadSubmission("copy")
		require.NoError(t, err)
		assert.Equal(t, "transaction", again.Kinds[0])
	})

	t.Run("Close", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.HealthCheck())
		require.NoError(t, s.Close())
		require.NoError(t, s.Close())

		assert.True(t, errors.Is(s.HealthCheck(), persistence.ErrClosed))
		assert.True(t, errors.Is(s.SaveKeyEntry(keyEntry("tz1a")), persistence.ErrClosed))
		_, err := s.LoadKeyEntry("tz1a")
		assert.True(t, errors.Is(err, persistence.ErrClosed))
		_, err = s.ListSubmissions()
		assert.True(t, errors.Is(err, persistence.ErrClosed))
	})

	t.Run("ThreadSafety", func(t *testing.T) {
		s := newStore(t)
		defer func() { _ = s.Close() }()

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("sub-%d", i)
				assert.NoError(t, s.SaveSubmission(submission(id, int64(i))))
				assert.NoError(t, s.SaveKeyEntry(keyEntry(fmt.Sprintf("tz1%d", i))))
				_, err := s.LoadSubmission(id)
				assert.NoError(t, err)
				_, err = s.ListKeyEntries()
				assert.NoError(t, err)
			}(i)
		}
		wg.Wait()

		records, err := s.ListSubmissions()
		require.NoError(t, err)
		assert.Len(t, records, 10)
	})
}
