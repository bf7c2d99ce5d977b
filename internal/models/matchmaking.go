package models

import "time"

// CriteriaAny 스킬 밴드/토픽 와일드카드
const CriteriaAny = "any"

// MatchCriteria 매칭 조건
type MatchCriteria struct {
	SkillBand string `json:"skillBand"` // beginner, intermediate, advanced, any
	Topic     string `json:"topic"`     // 문제 토픽 또는 any
}

// Normalize 빈 값을 와일드카드로 치환
func (c MatchCriteria) Normalize() MatchCriteria {
	if c.SkillBand == "" {
		c.SkillBand = CriteriaAny
	}
	if c.Topic == "" {
		c.Topic = CriteriaAny
	}
	return c
}

// Compatible 두 매칭 조건의 호환 여부
// 토픽과 스킬 밴드 각각 일치하거나 한쪽이 와일드카드면 호환
func (c MatchCriteria) Compatible(other MatchCriteria) bool {
	topicOK := c.Topic == CriteriaAny || other.Topic == CriteriaAny || c.Topic == other.Topic
	bandOK := c.SkillBand == CriteriaAny || other.SkillBand == CriteriaAny || c.SkillBand == other.SkillBand
	return topicOK && bandOK
}

// QueueEntry 매칭 대기 항목
// 불변식: 한 playerId는 동시에 최대 하나의 QueueEntry만 가진다.
type QueueEntry struct {
	PlayerID   string        `json:"playerId"`
	Criteria   MatchCriteria `json:"criteria"`
	EnqueuedAt time.Time     `json:"enqueuedAt"`
}
