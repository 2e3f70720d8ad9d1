package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/smartlearn/smartlearn-backend/internal/config"
	"github.com/smartlearn/smartlearn-backend/internal/database"
	"github.com/smartlearn/smartlearn-backend/internal/logger"
	"github.com/smartlearn/smartlearn-backend/internal/model"
)

type catalogFile struct {
	Courses []model.Course `json:"courses"`
}

func main() {
	var path string
	flag.StringVar(&path, "file", "seed/catalog.json", "Path to the catalog JSON file")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Failed to read catalog file")
	}

	var catalog catalogFile
	if err := json.Unmarshal(data, &catalog); err != nil {
		log.Fatal().Err(err).Msg("Failed to parse catalog file")
	}

	fmt.Printf("=== Seeding %d courses ===\n", len(catalog.Courses))

	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open transaction")
	}
	defer tx.Rollback(ctx)

	for _, course := range catalog.Courses {
		if err := seedCourse(ctx, tx, &course); err != nil {
			log.Fatal().Err(err).Str("course_id", course.ID).Msg("Seed failed")
		}
		fmt.Printf("  %s (%d videos, %d materials, %d exams)\n",
			course.ID, len(course.Videos), len(course.Materials), len(course.Exams))
	}

	if err := tx.Commit(ctx); err != nil {
		log.Fatal().Err(err).Msg("Commit failed")
	}

	fmt.Println("Done")
}

func seedCourse(ctx context.Context, tx pgx.Tx, course *model.Course) error {
	_, err := tx.Exec(ctx,
		`INSERT INTO courses (id, title, description, long_description, instructor, price, thumbnail)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET title = EXCLUDED.title, description = EXCLUDED.description,
		     long_description = EXCLUDED.long_description, instructor = EXCLUDED.instructor,
		     price = EXCLUDED.price, thumbnail = EXCLUDED.thumbnail`,
		course.ID, course.Title, course.Description, course.LongDescription,
		course.Instructor, course.Price, course.Thumbnail,
	)
	if err != nil {
		return fmt.Errorf("course: %w", err)
	}

	for i, v := range course.Videos {
		if _, err := tx.Exec(ctx,
			`INSERT INTO videos (id, course_id, title, youtube_id, position)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (course_id, id) DO UPDATE
			 SET title = EXCLUDED.title, youtube_id = EXCLUDED.youtube_id, position = EXCLUDED.position`,
			v.ID, course.ID, v.Title, v.YoutubeID, i,
		); err != nil {
			return fmt.Errorf("video %s: %w", v.ID, err)
		}
	}

	for i, m := range course.Materials {
		if _, err := tx.Exec(ctx,
			`INSERT INTO materials (id, course_id, title, url, position)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (course_id, id) DO UPDATE
			 SET title = EXCLUDED.title, url = EXCLUDED.url, position = EXCLUDED.position`,
			m.ID, course.ID, m.Title, m.URL, i,
		); err != nil {
			return fmt.Errorf("material %s: %w", m.ID, err)
		}
	}

	for _, p := range course.Feed {
		if _, err := tx.Exec(ctx,
			`INSERT INTO feed_posts (id, course_id, author, content, posted_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (course_id, id) DO UPDATE
			 SET author = EXCLUDED.author, content = EXCLUDED.content, posted_at = EXCLUDED.posted_at`,
			p.ID, course.ID, p.Author, p.Content, p.PostedAt,
		); err != nil {
			return fmt.Errorf("feed post %s: %w", p.ID, err)
		}
	}

	for i, e := range course.Exams {
		if _, err := tx.Exec(ctx,
			`INSERT INTO exams (id, course_id, title, description, instructions, kind,
			                    duration_minutes, live_window_start, live_window_end, position)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			 ON CONFLICT (id) DO UPDATE
			 SET course_id = EXCLUDED.course_id, title = EXCLUDED.title,
			     description = EXCLUDED.description, instructions = EXCLUDED.instructions,
			     kind = EXCLUDED.kind, duration_minutes = EXCLUDED.duration_minutes,
			     live_window_start = EXCLUDED.live_window_start,
			     live_window_end = EXCLUDED.live_window_end, position = EXCLUDED.position`,
			e.ID, course.ID, e.Title, e.Description, e.Instructions, e.Kind,
			e.DurationMinutes, e.LiveWindowStart, e.LiveWindowEnd, i,
		); err != nil {
			return fmt.Errorf("exam %s: %w", e.ID, err)
		}

		for j, q := range e.Questions {
			options := q.Options
			if options == nil {
				options = []string{}
			}
			if _, err := tx.Exec(ctx,
				`INSERT INTO questions (id, exam_id, text, options, answer, position)
				 VALUES ($1, $2, $3, $4, $5, $6)
				 ON CONFLICT (exam_id, id) DO UPDATE
				 SET text = EXCLUDED.text, options = EXCLUDED.options,
				     answer = EXCLUDED.answer, position = EXCLUDED.position`,
				q.ID, e.ID, q.Text, options, q.Answer, j,
			); err != nil {
				return fmt.Errorf("question %s: %w", q.ID, err)
			}
		}
	}

	return nil
}
