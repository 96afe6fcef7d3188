// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// MUS serializers for the persisted entity types. Field order is part of the
// stored format; append new fields at the end only.
var (
	TimeMUS     = timeSer{}
	PageMUS     = pageSer{}
	DocumentMUS = documentSer{}
	QueryMUS    = querySer{}

	stringSliceMUS = ord.NewSliceSer[string](ord.String)
	extraMUS       = ord.NewMapSer[string, string](ord.String, ord.String)
	pagesMUS       = ord.NewSliceSer[Page](PageMUS)
)

// timeSer encodes a timestamp as a presence flag plus UnixMicro so that the
// zero value (an unset lifecycle stage) survives a round trip.
type timeSer struct{}

func (timeSer) Marshal(t time.Time, bs []byte) (n int) {
	set := !t.IsZero()
	n = ord.Bool.Marshal(set, bs)
	if set {
		n += varint.Int64.Marshal(t.UnixMicro(), bs[n:])
	}
	return
}

func (timeSer) Unmarshal(bs []byte) (t time.Time, n int, err error) {
	set, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !set {
		return time.Time{}, n, err
	}
	us, n1, err := varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return time.Time{}, n, err
	}
	return time.UnixMicro(us).UTC(), n, nil
}

func (timeSer) Size(t time.Time) (size int) {
	size = ord.Bool.Size(!t.IsZero())
	if !t.IsZero() {
		size += varint.Int64.Size(t.UnixMicro())
	}
	return
}

func (timeSer) Skip(bs []byte) (n int, err error) {
	set, n, err := ord.Bool.Unmarshal(bs)
	if err != nil || !set {
		return n, err
	}
	n1, err := varint.Int64.Skip(bs[n:])
	return n + n1, err
}

type pageSer struct{}

func (pageSer) Marshal(p Page, bs []byte) (n int) {
	n = ord.String.Marshal(p.ID, bs)
	n += varint.Int.Marshal(p.PageNumber, bs[n:])
	n += ord.String.Marshal(p.ImagePath, bs[n:])
	return
}

func (pageSer) Unmarshal(bs []byte) (p Page, n int, err error) {
	p.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var n1 int
	p.PageNumber, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	p.ImagePath, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	return
}

func (pageSer) Size(p Page) (size int) {
	size = ord.String.Size(p.ID)
	size += varint.Int.Size(p.PageNumber)
	size += ord.String.Size(p.ImagePath)
	return
}

func (pageSer) Skip(bs []byte) (n int, err error) {
	n, err = ord.String.Skip(bs)
	if err != nil {
		return
	}
	var n1 int
	n1, err = varint.Int.Skip(bs[n:])
	n += n1
	if err != nil {
		return
	}
	n1, err = ord.String.Skip(bs[n:])
	n += n1
	return
}

type documentSer struct{}

func (documentSer) Marshal(d Document, bs []byte) (n int) {
	n = ord.String.Marshal(d.ID, bs)
	n += ord.String.Marshal(d.FileName, bs[n:])
	n += TimeMUS.Marshal(d.CreatedAt, bs[n:])
	n += TimeMUS.Marshal(d.ProcessedAt, bs[n:])
	n += TimeMUS.Marshal(d.IndexedAt, bs[n:])
	n += ord.String.Marshal(string(d.Status), bs[n:])
	n += extraMUS.Marshal(d.Extra, bs[n:])
	n += pagesMUS.Marshal(d.Pages, bs[n:])
	return
}

func (documentSer) Unmarshal(bs []byte) (d Document, n int, err error) {
	var n1 int
	d.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	d.FileName, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.CreatedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.ProcessedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.IndexedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var status string
	status, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.Status = DocumentStatus(status)
	d.Extra, n1, err = extraMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	d.Pages, n1, err = pagesMUS.Unmarshal(bs[n:])
	n += n1
	// Absent collections decode as nil, matching the pre-marshal value.
	if len(d.Extra) == 0 {
		d.Extra = nil
	}
	if len(d.Pages) == 0 {
		d.Pages = nil
	}
	return
}

func (documentSer) Size(d Document) (size int) {
	size = ord.String.Size(d.ID)
	size += ord.String.Size(d.FileName)
	size += TimeMUS.Size(d.CreatedAt)
	size += TimeMUS.Size(d.ProcessedAt)
	size += TimeMUS.Size(d.IndexedAt)
	size += ord.String.Size(string(d.Status))
	size += extraMUS.Size(d.Extra)
	size += pagesMUS.Size(d.Pages)
	return
}

func (s documentSer) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}

type querySer struct{}

func (querySer) Marshal(q Query, bs []byte) (n int) {
	n = ord.String.Marshal(q.ID, bs)
	n += ord.String.Marshal(q.Text, bs[n:])
	n += TimeMUS.Marshal(q.CreatedAt, bs[n:])
	n += TimeMUS.Marshal(q.ProcessedAt, bs[n:])
	n += TimeMUS.Marshal(q.IndexedAt, bs[n:])
	n += TimeMUS.Marshal(q.ContextRetrievedAt, bs[n:])
	n += TimeMUS.Marshal(q.AnsweredAt, bs[n:])
	n += ord.String.Marshal(string(q.Status), bs[n:])
	n += extraMUS.Marshal(q.Extra, bs[n:])
	n += stringSliceMUS.Marshal(q.TargetDocumentIDs, bs[n:])
	n += stringSliceMUS.Marshal(q.ContextPageIDs, bs[n:])
	n += ord.String.Marshal(q.Answer, bs[n:])
	return
}

func (querySer) Unmarshal(bs []byte) (q Query, n int, err error) {
	var n1 int
	q.ID, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	q.Text, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	q.CreatedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	q.ProcessedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	q.IndexedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	q.ContextRetrievedAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	q.AnsweredAt, n1, err = TimeMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var status string
	status, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	q.Status = QueryStatus(status)
	q.Extra, n1, err = extraMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	q.TargetDocumentIDs, n1, err = stringSliceMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	q.ContextPageIDs, n1, err = stringSliceMUS.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	q.Answer, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if len(q.Extra) == 0 {
		q.Extra = nil
	}
	if len(q.TargetDocumentIDs) == 0 {
		q.TargetDocumentIDs = nil
	}
	if len(q.ContextPageIDs) == 0 {
		q.ContextPageIDs = nil
	}
	return
}

func (querySer) Size(q Query) (size int) {
	size = ord.String.Size(q.ID)
	size += ord.String.Size(q.Text)
	size += TimeMUS.Size(q.CreatedAt)
	size += TimeMUS.Size(q.ProcessedAt)
	size += TimeMUS.Size(q.IndexedAt)
	size += TimeMUS.Size(q.ContextRetrievedAt)
	size += TimeMUS.Size(q.AnsweredAt)
	size += ord.String.Size(string(q.Status))
	size += extraMUS.Size(q.Extra)
	size += stringSliceMUS.Size(q.TargetDocumentIDs)
	size += stringSliceMUS.Size(q.ContextPageIDs)
	size += ord.String.Size(q.Answer)
	return
}

func (s querySer) Skip(bs []byte) (n int, err error) {
	_, n, err = s.Unmarshal(bs)
	return
}
