package service

import "time"

func SetAuthNow(s *AuthService, now func() time.Time) { s.now = now }

func SetVisitNow(s *VisitService, now func() time.Time) { s.now = now }
