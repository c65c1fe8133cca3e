package postgres

import (
	"database/sql"

	"github.com/jarvis-labs/neuromem-go/pkg/emotion"
	"github.com/jarvis-labs/neuromem-go/pkg/storage"
)

const fragmentColumns = `id, user_id, content, memory_type, valence, arousal,
	detected_emotion, emotion_confidence, importance, consolidation_level,
	created_at, last_accessed_at, access_count`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFragment(row rowScanner) (*storage.Fragment, error) {
	var (
		f          storage.Fragment
		memoryType string
		level      string
		detected   string
	)
	err := row.Scan(
		&f.ID,
		&f.UserID,
		&f.Content,
		&memoryType,
		&f.Emotion.Valence,
		&f.Emotion.Arousal,
		&detected,
		&f.Emotion.Confidence,
		&f.ImportanceScore,
		&level,
		&f.CreatedAt,
		&f.LastAccessedAt,
		&f.AccessCount,
	)
	if err != nil {
		return nil, err
	}

	f.MemoryType = storage.MemoryType(memoryType)
	f.ConsolidationLevel = storage.ConsolidationLevel(level)
	if detected == "" {
		detected = emotion.EmotionNeutral
	}
	f.Emotion.DetectedEmotion = detected
	return &f, nil
}

func scanFragments(rows *sql.Rows) ([]*storage.Fragment, error) {
	var out []*storage.Fragment
	for rows.Next() {
		f, err := scanFragment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
