package services

import (
	"fmt"
	"log"
	"os"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"trendscope/internal/models"
)

// defaultQuestions seeds the catalog when no questions file is configured.
var defaultQuestions = []models.ResearchQuestion{
	{
		ID:          "gen_z_nigeria",
		Title:       "Gen Z Nigeria: Facebook vs Google Usage",
		Question:    "Why does Gen Z in Nigeria appear to use Facebook for community and content discovery, while using Google primarily for functional, task-based searches?",
		Focus:       "Social behavior patterns, platform preferences, user motivations",
		SearchTerms: []string{"Gen Z Nigeria Facebook", "Nigeria Google usage", "Nigerian social media behavior"},
	},
	{
		ID:          "detty_december",
		Title:       "Detty December Tourism Analysis",
		Question:    "Beyond the parties, what are the core drivers and frustrations for the diaspora and domestic tourists participating in 'Detty December' in Nigeria and Ghana?",
		Focus:       "Tourism motivations, pain points, diaspora engagement",
		SearchTerms: []string{"Detty December Nigeria Ghana", "Diaspora tourism Africa", "December tourism West Africa"},
	},
	{
		ID:          "creator_economy",
		Title:       "African Creator Economy Challenges",
		Question:    "What are the primary financial challenges and unmet needs of emerging creators and gamers in key African markets?",
		Focus:       "Monetization barriers, infrastructure gaps, creator pain points",
		SearchTerms: []string{"African creators challenges", "African gamers monetization", "Creator economy Africa"},
	},
	{
		ID:          "mpesa_competition",
		Title:       "M-Pesa Market Dominance Analysis",
		Question:    "What are the primary drivers of M-Pesa's dominance in East Africa, and what specific user frustrations or unmet needs could a competitor leverage to capture market share among the digital-native population?",
		Focus:       "Competitive analysis, user pain points, market opportunities",
		SearchTerms: []string{"M-Pesa dominance East Africa", "Mobile money Kenya", "M-Pesa competition"},
	},
}

// QuestionCatalog holds the preconfigured research questions. When backed
// by a YAML file it reloads on change; otherwise it serves the defaults.
type QuestionCatalog struct {
	mu        sync.RWMutex
	questions map[string]models.ResearchQuestion
	order     []string
	filePath  string
	watcher   *fsnotify.Watcher
}

// NewQuestionCatalog creates a catalog. filePath may be empty, in which
// case the embedded defaults are used without watching.
func NewQuestionCatalog(filePath string) (*QuestionCatalog, error) {
	c := &QuestionCatalog{filePath: filePath}
	c.setQuestions(defaultQuestions)

	if filePath == "" {
		return c, nil
	}

	if err := c.loadFile(); err != nil {
		return nil, err
	}
	if err := c.watch(); err != nil {
		log.Printf("⚠️ [CATALOG] file watch unavailable: %v", err)
	}
	return c, nil
}

type questionsFile struct {
	Questions []models.ResearchQuestion `yaml:"questions"`
}

func (c *QuestionCatalog) loadFile() error {
	data, err := os.ReadFile(c.filePath)
	if err != nil {
		return fmt.Errorf("failed to read questions file: %w", err)
	}

	var parsed questionsFile
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse questions file: %w", err)
	}
	if len(parsed.Questions) == 0 {
		return fmt.Errorf("questions file %s contains no questions", c.filePath)
	}

	c.setQuestions(parsed.Questions)
	log.Printf("✅ [CATALOG] loaded %d questions from %s", len(parsed.Questions), c.filePath)
	return nil
}

func (c *QuestionCatalog) setQuestions(questions []models.ResearchQuestion) {
	byID := make(map[string]models.ResearchQuestion, len(questions))
	order := make([]string, 0, len(questions))
	for _, q := range questions {
		if q.ID == "" || q.Question == "" {
			continue
		}
		if _, dup := byID[q.ID]; dup {
			continue
		}
		byID[q.ID] = q
		order = append(order, q.ID)
	}

	c.mu.Lock()
	c.questions = byID
	c.order = order
	c.mu.Unlock()
}

// watch reloads the catalog when the backing file changes. A reload that
// fails keeps the previous catalog.
func (c *QuestionCatalog) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(c.filePath); err != nil {
		watcher.Close()
		return err
	}
	c.watcher = watcher

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := c.loadFile(); err != nil {
					log.Printf("⚠️ [CATALOG] reload failed, keeping previous catalog: %v", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("⚠️ [CATALOG] watch error: %v", err)
			}
		}
	}()
	return nil
}

// Get returns the question with the given id.
func (c *QuestionCatalog) Get(id string) (models.ResearchQuestion, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.questions[id]
	return q, ok
}

// All returns every catalog question in file order (defaults keep their
// seeded order).
func (c *QuestionCatalog) All() []models.ResearchQuestion {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]models.ResearchQuestion, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.questions[id])
	}
	return out
}

// IDs returns the catalog's question ids, sorted.
func (c *QuestionCatalog) IDs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := append([]string(nil), c.order...)
	sort.Strings(out)
	return out
}

// Close stops the file watcher.
func (c *QuestionCatalog) Close() {
	if c.watcher != nil {
		c.watcher.Close()
	}
}
